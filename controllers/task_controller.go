package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

func GetTasks(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var tasks []models.Task
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&tasks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

type CreateTaskRequest struct {
	Text string `json:"text" binding:"required"`
}

func CreateTask(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task text is required"})
		return
	}

	task := models.Task{UserID: userID, Text: strings.TrimSpace(req.Text)}
	if err := db.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

type UpdateTaskRequest struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

func UpdateTask(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var task models.Task
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&task).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	updates := map[string]interface{}{}
	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Task text is required"})
			return
		}
		updates["text"] = text
	}
	if req.Completed != nil {
		updates["completed"] = *req.Completed
	}
	if len(updates) > 0 {
		if err := db.Model(&task).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func DeleteTask(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func GetMainGoal(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var goal models.MainGoal
	err := db.Where("user_id = ?", userID).First(&goal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, gin.H{"goal": nil})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load goal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

type UpdateMainGoalRequest struct {
	GoalText *string `json:"goal_text"`
}

func UpdateMainGoal(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateMainGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var goal models.MainGoal
	err := db.Where("user_id = ?", userID).First(&goal).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load goal"})
		return
	}
	goal.UserID = userID
	goal.GoalText = req.GoalText
	if err := db.Save(&goal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save goal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"goal": goal})
}
