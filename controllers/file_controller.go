package controllers

import (
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/services"
	"github.com/vnkhanh/aetherstudy-backend/utils"
	"gorm.io/gorm"
)

const (
	maxUploadSize  = 50 << 20
	maxImageSize   = 5 << 20
	signedURLTTL   = time.Hour
	rootFolderName = "root"
)

var folderPalette = []string{
	"#3b82f6", "#ef4444", "#10b981", "#f59e0b",
	"#8b5cf6", "#ec4899", "#06b6d4", "#84cc16",
}

// FileController serves folders, stored files and flashcard images.
type FileController struct {
	Store       services.ObjectStore
	FileBucket  string
	ImageBucket string
}

func (f *FileController) storageReady(c *gin.Context) bool {
	if f.Store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "File storage is not configured"})
		return false
	}
	return true
}

func (f *FileController) GetFolders(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var folders []models.Folder
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&folders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load folders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

type FolderRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (f *FileController) CreateFolder(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Folder name is required"})
		return
	}

	folder := models.Folder{
		UserID: userID,
		Name:   strings.TrimSpace(*req.Name),
		Color:  folderPalette[rand.Intn(len(folderPalette))],
	}
	if req.Color != nil && *req.Color != "" {
		folder.Color = *req.Color
	}
	if err := db.Create(&folder).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create folder"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"folder": folder})
}

func (f *FileController) UpdateFolder(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var folder models.Folder
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&folder).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Folder name is required"})
			return
		}
		updates["name"] = name
	}
	if req.Color != nil && *req.Color != "" {
		updates["color"] = *req.Color
	}
	if len(updates) > 0 {
		if err := db.Model(&folder).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update folder"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"folder": folder})
}

// DeleteFolder removes the storage objects of contained files, the file rows
// and then the folder. Notes in the folder move to the root.
func (f *FileController) DeleteFolder(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var folder models.Folder
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&folder).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}

	var files []models.File
	if err := db.Where("folder_id = ? AND user_id = ?", folder.ID, userID).Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load folder files"})
		return
	}
	if len(files) > 0 {
		if !f.storageReady(c) {
			return
		}
		paths := make([]string, 0, len(files))
		for _, file := range files {
			paths = append(paths, file.StoragePath)
		}
		if err := f.Store.Remove(f.FileBucket, paths); err != nil {
			logrus.WithError(err).WithField("folder_id", folder.ID).Error("Failed to remove folder objects")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete folder files"})
			return
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("folder_id = ? AND user_id = ?", folder.ID, userID).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Note{}).Where("folder_id = ? AND user_id = ?", folder.ID, userID).
			Update("folder_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&folder).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete folder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Folder deleted"})
}

func (f *FileController) GetFiles(c *gin.Context) {
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

	var files []models.File
	if err := query.Order("updated_at DESC").Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// ownedFolder checks that folderID belongs to the user; nil means the root.
func ownedFolder(db *gorm.DB, userID uuid.UUID, folderID *uuid.UUID) error {
	if folderID == nil {
		return nil
	}
	var count int64
	if err := db.Model(&models.Folder{}).Where("id = ? AND user_id = ?", *folderID, userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return services.ErrNotFound
	}
	return nil
}

func parseFolderField(value string) (*uuid.UUID, error) {
	if value == "" || value == rootFolderName {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (f *FileController) UploadFile(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !f.storageReady(c) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file is required"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is too large (max 50MB)"})
		return
	}

	folderID, err := parseFolderField(c.PostForm("folder_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid folder_id"})
		return
	}
	if err := ownedFolder(db, userID, folderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path := utils.ObjectKey(userID.String(), fileHeader.Filename, time.Now())
	if err := f.Store.Upload(f.FileBucket, path, src, contentType); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to upload file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	file := models.File{
		UserID:      userID,
		FolderID:    folderID,
		Name:        fileHeader.Filename,
		FileSize:    fileHeader.Size,
		FileType:    contentType,
		StoragePath: path,
	}
	if err := db.Create(&file).Error; err != nil {
		// Drop the orphaned object.
		_ = f.Store.Remove(f.FileBucket, []string{path})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": file})
}

func findFile(c *gin.Context, db *gorm.DB, userID uuid.UUID) (*models.File, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var file models.File
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load file"})
		return nil, false
	}
	return &file, true
}

type RenameFileRequest struct {
	Name string `json:"name" binding:"required"`
}

func (f *FileController) RenameFile(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File name is required"})
		return
	}
	file, ok := findFile(c, db, userID)
	if !ok {
		return
	}
	if err := db.Model(file).Update("name", strings.TrimSpace(req.Name)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rename file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": file})
}

type MoveFileRequest struct {
	FolderID *uuid.UUID `json:"folder_id"`
}

func (f *FileController) MoveFile(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req MoveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid folder_id"})
		return
	}
	file, ok := findFile(c, db, userID)
	if !ok {
		return
	}
	if err := ownedFolder(db, userID, req.FolderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}
	if err := db.Model(file).Update("folder_id", req.FolderID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to move file"})
		return
	}
	file.FolderID = req.FolderID
	c.JSON(http.StatusOK, gin.H{"file": file})
}

func (f *FileController) GetFileURL(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	file, ok := findFile(c, db, userID)
	if !ok {
		return
	}
	if !f.storageReady(c) {
		return
	}

	url, err := f.Store.SignedURL(f.FileBucket, file.StoragePath, signedURLTTL)
	if err != nil {
		logrus.WithError(err).WithField("file_id", file.ID).Error("Failed to sign file url")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create download link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(signedURLTTL.Seconds())})
}

func (f *FileController) DeleteFile(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	file, ok := findFile(c, db, userID)
	if !ok {
		return
	}
	if !f.storageReady(c) {
		return
	}

	if err := f.Store.Remove(f.FileBucket, []string{file.StoragePath}); err != nil {
		logrus.WithError(err).WithField("file_id", file.ID).Error("Failed to remove stored object")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}
	if err := db.Delete(file).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
}

// UploadFlashcardImage stores an image for a card face and returns its public URL.
func (f *FileController) UploadFlashcardImage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !f.storageReady(c) {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "An image is required"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are allowed"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is too large (max 5MB)"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer src.Close()

	path := utils.ObjectKey(userID.String(), fileHeader.Filename, time.Now())
	if err := f.Store.Upload(f.ImageBucket, path, src, contentType); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to upload image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload image"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": f.Store.PublicURL(f.ImageBucket, path), "path": path})
}
