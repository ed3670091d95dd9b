package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/aetherstudy-backend/controllers"
	"github.com/vnkhanh/aetherstudy-backend/middleware"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/ws"
	"gorm.io/gorm"
)

// Deps are the controllers that need more than the database.
type Deps struct {
	Hub           *ws.Hub
	AI            *controllers.AIController
	Subscriptions *controllers.SubscriptionController
	Webhooks      *controllers.WebhookController
	Files         *controllers.FileController
}

func SetupRouter(r *gin.Engine, db *gorm.DB, deps Deps) *gin.Engine {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", controllers.HealthCheck(db, deps.Hub))
	r.GET("/ws/user", deps.Hub.HandleUserWebSocket)

	api := r.Group("/api")
	api.Use(middleware.DBMiddleware(db))

	api.POST("/webhooks/paypal", deps.Webhooks.PaypalWebhook)
	api.GET("/public/flashcard-sets/:public_id", controllers.GetPublicFlashcardSet)

	user := api.Group("")
	user.Use(middleware.AuthMiddleware(db))
	{
		ai := user.Group("/ai")
		ai.POST("/flashcards", deps.AI.GenerateFlashcards)
		ai.POST("/quiz", deps.AI.GenerateQuiz)
		ai.POST("/citations", deps.AI.GenerateCitations)
		ai.GET("/usage", deps.AI.GetUsage)

		sub := user.Group("/subscription")
		sub.GET("", deps.Subscriptions.GetSubscription)
		sub.POST("/activate", deps.Subscriptions.ActivateSubscription)
		sub.POST("/cancel", deps.Subscriptions.CancelSubscription)

		user.GET("/profile", controllers.GetProfile)
		user.PUT("/profile", controllers.UpdateProfile)

		user.GET("/tasks", controllers.GetTasks)
		user.POST("/tasks", controllers.CreateTask)
		user.PUT("/tasks/:id", controllers.UpdateTask)
		user.DELETE("/tasks/:id", controllers.DeleteTask)
		user.GET("/goal", controllers.GetMainGoal)
		user.PUT("/goal", controllers.UpdateMainGoal)

		user.GET("/folders", deps.Files.GetFolders)
		user.POST("/folders", deps.Files.CreateFolder)
		user.PUT("/folders/:id", deps.Files.UpdateFolder)
		user.DELETE("/folders/:id", deps.Files.DeleteFolder)

		user.GET("/files", deps.Files.GetFiles)
		user.POST("/files", deps.Files.UploadFile)
		user.PUT("/files/:id", deps.Files.RenameFile)
		user.PATCH("/files/:id/move", deps.Files.MoveFile)
		user.GET("/files/:id/url", deps.Files.GetFileURL)
		user.DELETE("/files/:id", deps.Files.DeleteFile)

		user.GET("/notes", controllers.GetNotes)
		user.POST("/notes", controllers.CreateNote)
		user.GET("/notes/:id", controllers.GetNote)
		user.PUT("/notes/:id", controllers.UpdateNote)
		user.DELETE("/notes/:id", controllers.DeleteNote)

		user.GET("/flashcard-sets", controllers.GetFlashcardSets)
		user.POST("/flashcard-sets", controllers.CreateFlashcardSet)
		user.POST("/flashcard-sets/generated", controllers.SaveGeneratedFlashcards)
		user.GET("/flashcard-sets/:id", controllers.GetFlashcardSet)
		user.PUT("/flashcard-sets/:id", controllers.UpdateFlashcardSet)
		user.DELETE("/flashcard-sets/:id", controllers.DeleteFlashcardSet)
		user.POST("/flashcard-sets/:id/cards", controllers.AddFlashcard)
		user.PUT("/flashcard-sets/:id/cards/order", controllers.ReorderFlashcards)
		user.PUT("/flashcard-sets/:id/cards/:card_id", controllers.UpdateFlashcard)
		user.DELETE("/flashcard-sets/:id/cards/:card_id", controllers.DeleteFlashcard)
		user.POST("/flashcards/images", deps.Files.UploadFlashcardImage)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(db), middleware.RequireRoles(db, models.RoleAdmin))
	{
		admin.GET("/payment-logs", controllers.GetPaymentLogs)
	}

	return r
}
