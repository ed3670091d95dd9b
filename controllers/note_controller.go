package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

const defaultNoteTitle = "Untitled"

func GetNotes(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	query := db.Where("user_id = ?", userID)
	switch folder := c.Query("folder_id"); folder {
	case "":
	case rootFolderName:
		query = query.Where("folder_id IS NULL")
	default:
		folderID, err := uuid.Parse(folder)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid folder_id"})
			return
		}
		query = query.Where("folder_id = ?", folderID)
	}

	var notes []models.Note
	if err := query.Order("updated_at DESC").Find(&notes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

type NoteRequest struct {
	Title     *string          `json:"title"`
	Content   *json.RawMessage `json:"content"`
	Thumbnail *string          `json:"thumbnail"`
	// FolderID takes a folder id, or "root" to move the note out of its folder.
	FolderID *string `json:"folder_id"`
}

// folder resolves FolderID. set is false when the field was not sent.
func (r NoteRequest) folder() (id *uuid.UUID, set bool, err error) {
	if r.FolderID == nil {
		return nil, false, nil
	}
	id, err = parseFolderField(*r.FolderID)
	return id, true, err
}

func CreateNote(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	folderID, _, err := req.folder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid folder_id"})
		return
	}
	if err := ownedFolder(db, userID, folderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}

	note := models.Note{
		UserID:    userID,
		FolderID:  folderID,
		Title:     defaultNoteTitle,
		Content:   json.RawMessage(`{}`),
		Thumbnail: req.Thumbnail,
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		note.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if err := db.Create(&note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create note"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

func findNote(c *gin.Context, db *gorm.DB, userID uuid.UUID) (*models.Note, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var note models.Note
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load note"})
		return nil, false
	}
	return &note, true
}

func GetNote(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	note, ok := findNote(c, db, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

func UpdateNote(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	folderID, moveFolder, err := req.folder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid folder_id"})
		return
	}
	note, ok := findNote(c, db, userID)
	if !ok {
		return
	}

	if req.Title != nil {
		note.Title = strings.TrimSpace(*req.Title)
		if note.Title == "" {
			note.Title = defaultNoteTitle
		}
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.Thumbnail != nil {
		note.Thumbnail = req.Thumbnail
	}
	if moveFolder {
		if err := ownedFolder(db, userID, folderID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
			return
		}
		note.FolderID = folderID
	}

	if err := db.Save(note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update note"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

func DeleteNote(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Note{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete note"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}
