package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/services"
	"gorm.io/gorm"
)

type AIController struct {
	Generator     *services.Generator
	Usage         *services.UsageService
	Subscriptions *services.SubscriptionService
	Store         services.ObjectStore
	FileBucket    string
}

type GenerateRequest struct {
	Text   string     `json:"text"`
	FileID *uuid.UUID `json:"file_id"`
}

type CitationRequest struct {
	Links  []string `json:"links"`
	Format string   `json:"format"`
}

// resolveText returns the request text or the extracted text of one of the
// user's stored files.
func (a *AIController) resolveText(c *gin.Context, userID uuid.UUID, req GenerateRequest) (string, bool) {
	if req.FileID == nil {
		return req.Text, true
	}

	var file models.File
	err := dbFrom(c).Where("id = ? AND user_id = ?", *req.FileID, userID).First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return "", false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load file"})
		return "", false
	}
	if _, ok := services.InputTypeFromName(file.Name); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type; use pdf, docx, txt or md"})
		return "", false
	}
	if a.Store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "File storage is not configured"})
		return "", false
	}

	data, err := a.Store.Download(a.FileBucket, file.StoragePath)
	if err != nil {
		logrus.WithError(err).WithField("file_id", file.ID).Error("Failed to download file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return "", false
	}
	text, err := services.ExtractText(file.Name, data)
	if err != nil {
		logrus.WithError(err).WithField("file_id", file.ID).Warn("Failed to extract file text")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not extract text from file"})
		return "", false
	}
	return text, true
}

// checkQuota answers 429 when a free-tier user already used feature in the window.
func (a *AIController) checkQuota(c *gin.Context, userID uuid.UUID, feature models.AIFeature) (isPro bool, ok bool) {
	isPro, err := a.Subscriptions.IsProUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check subscription"})
		return false, false
	}

	err = a.Usage.Check(c.Request.Context(), userID, feature, isPro)
	var limitErr *services.UsageLimitError
	if errors.As(err, &limitErr) {
		c.Header("Retry-After", strconv.Itoa(services.RetryAfterSeconds(limitErr.Remaining)))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":            limitErr.Error(),
			"feature":          feature,
			"reset_in":         services.FormatRemaining(limitErr.Remaining),
			"upgrade_required": true,
		})
		return isPro, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check usage"})
		return isPro, false
	}
	return isPro, true
}

func (a *AIController) recordUsage(c *gin.Context, userID uuid.UUID, feature models.AIFeature, isPro bool) {
	if isPro {
		return
	}
	if err := a.Usage.Record(c.Request.Context(), userID, feature); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"feature": feature,
		}).Error("Failed to record AI usage")
	}
}

func respondGenerationError(c *gin.Context, err error) {
	var genErr *services.GenerationError
	if errors.As(err, &genErr) {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": genErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func (a *AIController) prepare(c *gin.Context, feature models.AIFeature) (uuid.UUID, string, bool, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return uuid.Nil, "", false, false
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return uuid.Nil, "", false, false
	}
	text, ok := a.resolveText(c, userID, req)
	if !ok {
		return uuid.Nil, "", false, false
	}
	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text content is required"})
		return uuid.Nil, "", false, false
	}

	isPro, ok := a.checkQuota(c, userID, feature)
	if !ok {
		return uuid.Nil, "", false, false
	}
	return userID, text, isPro, true
}

func (a *AIController) GenerateFlashcards(c *gin.Context) {
	userID, text, isPro, ok := a.prepare(c, models.FeatureFlashcards)
	if !ok {
		return
	}

	cards, err := a.Generator.Flashcards(c.Request.Context(), text)
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	a.recordUsage(c, userID, models.FeatureFlashcards, isPro)

	c.JSON(http.StatusOK, gin.H{"flashcards": cards})
}

func (a *AIController) GenerateQuiz(c *gin.Context) {
	userID, text, isPro, ok := a.prepare(c, models.FeatureQuiz)
	if !ok {
		return
	}

	questions, err := a.Generator.Quiz(c.Request.Context(), text)
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	a.recordUsage(c, userID, models.FeatureQuiz, isPro)

	logrus.WithField("user_id", userID).Infof("Generated %d quiz questions", len(questions))
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (a *AIController) GenerateCitations(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var req CitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	citations, err := a.Generator.Citations(c.Request.Context(), req.Links, req.Format, time.Now())
	if err != nil {
		respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"citations": citations})
}

func (a *AIController) GetUsage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	isPro, err := a.Subscriptions.IsProUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check subscription"})
		return
	}
	summary, err := a.Usage.Summary(c.Request.Context(), userID, isPro)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load usage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"is_pro":   isPro,
		"features": summary,
	})
}
