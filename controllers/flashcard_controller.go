package controllers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

type FlashcardSetSummary struct {
	models.FlashcardSet
	CardCount int64 `json:"card_count"`
}

func GetFlashcardSets(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var sets []models.FlashcardSet
	if err := db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&sets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load flashcard sets"})
		return
	}

	counts := map[uuid.UUID]int64{}
	if len(sets) > 0 {
		ids := make([]uuid.UUID, 0, len(sets))
		for _, s := range sets {
			ids = append(ids, s.ID)
		}
		var rows []struct {
			FlashcardSetID uuid.UUID
			Count          int64
		}
		if err := db.Model(&models.Flashcard{}).
			Select("flashcard_set_id, COUNT(*) AS count").
			Where("flashcard_set_id IN ?", ids).
			Group("flashcard_set_id").
			Scan(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count flashcards"})
			return
		}
		for _, r := range rows {
			counts[r.FlashcardSetID] = r.Count
		}
	}

	out := make([]FlashcardSetSummary, 0, len(sets))
	for _, s := range sets {
		out = append(out, FlashcardSetSummary{FlashcardSet: s, CardCount: counts[s.ID]})
	}
	c.JSON(http.StatusOK, gin.H{"flashcard_sets": out})
}

type CardInput struct {
	Question      string  `json:"question"`
	Answer        string  `json:"answer"`
	QuestionImage *string `json:"question_image"`
	AnswerImage   *string `json:"answer_image"`
}

// validCards drops cards without a question or an answer and numbers the rest from 0.
func validCards(setID uuid.UUID, inputs []CardInput) []models.Flashcard {
	cards := make([]models.Flashcard, 0, len(inputs))
	for _, in := range inputs {
		q, a := strings.TrimSpace(in.Question), strings.TrimSpace(in.Answer)
		if q == "" || a == "" {
			continue
		}
		cards = append(cards, models.Flashcard{
			FlashcardSetID: setID,
			Question:       q,
			Answer:         a,
			QuestionImage:  in.QuestionImage,
			AnswerImage:    in.AnswerImage,
			Position:       len(cards),
		})
	}
	return cards
}

type FlashcardSetRequest struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	Tags        []string    `json:"tags"`
	IsPublic    *bool       `json:"is_public"`
	Flashcards  []CardInput `json:"flashcards"`
}

func CreateFlashcardSet(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req FlashcardSetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	set := models.FlashcardSet{
		UserID:      userID,
		Title:       strings.TrimSpace(*req.Title),
		Description: trimmedOrNil(req.Description),
		Tags:        req.Tags,
	}
	if set.Tags == nil {
		set.Tags = []string{}
	}
	if req.IsPublic != nil {
		set.IsPublic = *req.IsPublic
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&set).Error; err != nil {
			return err
		}
		set.Flashcards = validCards(set.ID, req.Flashcards)
		if len(set.Flashcards) == 0 {
			return nil
		}
		return tx.Create(&set.Flashcards).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create flashcard set"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"flashcard_set": set})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

type SaveGeneratedRequest struct {
	SourceText string      `json:"source_text"`
	Flashcards []CardInput `json:"flashcards"`
}

// GeneratedSetDescription is "Generated from: " plus the first 100 characters of the source.
func GeneratedSetDescription(source string) string {
	runes := []rune(source)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	return fmt.Sprintf("Generated from: %s...", string(runes))
}

// SaveGeneratedFlashcards stores an AI generated deck as a private set in one transaction.
func SaveGeneratedFlashcards(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req SaveGeneratedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	description := GeneratedSetDescription(req.SourceText)
	set := models.FlashcardSet{
		UserID:      userID,
		Title:       "AI Generated - " + time.Now().Format("1/2/2006"),
		Description: &description,
		Tags:        []string{"AI-generated"},
	}
	cards := validCards(uuid.Nil, req.Flashcards)
	if len(cards) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one flashcard is required"})
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&set).Error; err != nil {
			return err
		}
		for i := range cards {
			cards[i].FlashcardSetID = set.ID
		}
		return tx.Create(&cards).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save flashcards to your collection"})
		return
	}
	set.Flashcards = cards
	c.JSON(http.StatusCreated, gin.H{"flashcard_set": set})
}

func findSet(c *gin.Context, db *gorm.DB, userID uuid.UUID) (*models.FlashcardSet, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var set models.FlashcardSet
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flashcard set not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load flashcard set"})
		return nil, false
	}
	return &set, true
}

func orderedCards(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func GetFlashcardSet(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}
	if err := orderedCards(db).Where("flashcard_set_id = ?", set.ID).Find(&set.Flashcards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load flashcards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashcard_set": set})
}

// UpdateFlashcardSet edits the set fields; a flashcards array replaces every card.
func UpdateFlashcardSet(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req FlashcardSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
			return
		}
		set.Title = title
	}
	if req.Description != nil {
		set.Description = trimmedOrNil(req.Description)
	}
	if req.Tags != nil {
		set.Tags = req.Tags
	}
	if req.IsPublic != nil {
		set.IsPublic = *req.IsPublic
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(set).Error; err != nil {
			return err
		}
		if req.Flashcards == nil {
			return nil
		}
		if err := tx.Where("flashcard_set_id = ?", set.ID).Delete(&models.Flashcard{}).Error; err != nil {
			return err
		}
		cards := validCards(set.ID, req.Flashcards)
		if len(cards) == 0 {
			return nil
		}
		return tx.Create(&cards).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flashcard set"})
		return
	}
	if err := orderedCards(db).Where("flashcard_set_id = ?", set.ID).Find(&set.Flashcards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load flashcards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashcard_set": set})
}

func DeleteFlashcardSet(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("flashcard_set_id = ?", set.ID).Delete(&models.Flashcard{}).Error; err != nil {
			return err
		}
		return tx.Delete(set).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete flashcard set"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Flashcard set deleted"})
}

func AddFlashcard(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CardInput
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question and answer are required"})
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}

	var card models.Flashcard
	err := db.Transaction(func(tx *gorm.DB) error {
		var maxPos sql.NullInt64
		if err := tx.Model(&models.Flashcard{}).
			Where("flashcard_set_id = ?", set.ID).
			Select("MAX(position)").
			Row().Scan(&maxPos); err != nil {
			return err
		}
		position := 0
		if maxPos.Valid {
			position = int(maxPos.Int64) + 1
		}
		card = models.Flashcard{
			FlashcardSetID: set.ID,
			Question:       strings.TrimSpace(req.Question),
			Answer:         strings.TrimSpace(req.Answer),
			QuestionImage:  req.QuestionImage,
			AnswerImage:    req.AnswerImage,
			Position:       position,
		}
		return tx.Create(&card).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add flashcard"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"flashcard": card})
}

func findCard(c *gin.Context, db *gorm.DB, set *models.FlashcardSet) (*models.Flashcard, bool) {
	cardID, ok := paramID(c, "card_id")
	if !ok {
		return nil, false
	}
	var card models.Flashcard
	if err := db.Where("id = ? AND flashcard_set_id = ?", cardID, set.ID).First(&card).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flashcard not found"})
		return nil, false
	}
	return &card, true
}

type UpdateCardRequest struct {
	Question      *string `json:"question"`
	Answer        *string `json:"answer"`
	QuestionImage *string `json:"question_image"`
	AnswerImage   *string `json:"answer_image"`
}

func UpdateFlashcard(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}
	card, ok := findCard(c, db, set)
	if !ok {
		return
	}

	if req.Question != nil {
		card.Question = strings.TrimSpace(*req.Question)
	}
	if req.Answer != nil {
		card.Answer = strings.TrimSpace(*req.Answer)
	}
	if card.Question == "" || card.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question and answer are required"})
		return
	}
	if req.QuestionImage != nil {
		card.QuestionImage = trimmedOrNil(req.QuestionImage)
	}
	if req.AnswerImage != nil {
		card.AnswerImage = trimmedOrNil(req.AnswerImage)
	}

	if err := db.Save(card).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flashcard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashcard": card})
}

func DeleteFlashcard(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}
	card, ok := findCard(c, db, set)
	if !ok {
		return
	}
	if err := db.Delete(card).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete flashcard"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Flashcard deleted"})
}

type ReorderRequest struct {
	CardIDs []uuid.UUID `json:"card_ids" binding:"required"`
}

// ReorderFlashcards sets each card's position to its index in card_ids.
func ReorderFlashcards(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_ids is required"})
		return
	}
	set, ok := findSet(c, db, userID)
	if !ok {
		return
	}

	var count int64
	if err := db.Model(&models.Flashcard{}).
		Where("flashcard_set_id = ? AND id IN ?", set.ID, req.CardIDs).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder flashcards"})
		return
	}
	if int(count) != len(req.CardIDs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_ids must list cards of this set once"})
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for i, id := range req.CardIDs {
			if err := tx.Model(&models.Flashcard{}).
				Where("id = ? AND flashcard_set_id = ?", id, set.ID).
				Update("position", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder flashcards"})
		return
	}

	if err := orderedCards(db).Where("flashcard_set_id = ?", set.ID).Find(&set.Flashcards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load flashcards"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashcards": set.Flashcards})
}

type PublicFlashcardSet struct {
	Title       string             `json:"title"`
	Description *string            `json:"description"`
	Tags        []string           `json:"tags"`
	PublicID    string             `json:"public_id"`
	CreatedAt   time.Time          `json:"created_at"`
	Flashcards  []models.Flashcard `json:"flashcards"`
}

// GetPublicFlashcardSet serves a shared set without revealing its owner.
func GetPublicFlashcardSet(c *gin.Context) {
	db := dbFrom(c)
	publicID := c.Param("public_id")

	var set models.FlashcardSet
	if err := db.Where("public_id = ? AND is_public = ?", publicID, true).First(&set).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flashcard set not found"})
		return
	}
	var cards []models.Flashcard
	if err := orderedCards(db).Where("flashcard_set_id = ?", set.ID).Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load flashcards"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flashcard_set": PublicFlashcardSet{
		Title:       set.Title,
		Description: set.Description,
		Tags:        set.Tags,
		PublicID:    set.PublicID,
		CreatedAt:   set.CreatedAt,
		Flashcards:  cards,
	}})
}
