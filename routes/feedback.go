package routes

import (
	"net/http"
	"strconv"
	"time"

	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/models"
	"exam-tutor-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func SetupFeedbackRoutes(router *gin.Engine, cfg *config.Config, mongoClient *mongo.Client) {
	api := router.Group("/api")

	db := mongoClient.Database(cfg.DBName)
	queriesCollection := db.Collection("queries")
	feedbackCollection := db.Collection("feedback")

	// POST /api/feedback rates a previously answered query.
	api.POST("/feedback", func(c *gin.Context) {
		var req models.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		count, err := queriesCollection.CountDocuments(c.Request.Context(), bson.M{"query_id": req.QueryID})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to validate query", nil)
			return
		}
		if count == 0 {
			utils.RespondWithNotFound(c, "Query not found")
			return
		}

		feedback := models.Feedback{
			QueryID:   req.QueryID,
			Rating:    req.Rating,
			Comment:   req.Comment,
			IssueType: req.IssueType,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := feedbackCollection.InsertOne(c.Request.Context(), feedback); err != nil {
			utils.RespondWithInternalError(c, "Failed to store feedback", nil)
			return
		}

		c.JSON(http.StatusCreated, feedback)
	})

	// GET /api/feedback/:id lists feedback for one query.
	api.GET("/feedback/:id", func(c *gin.Context) {
		opts := options.Find().SetSort(bson.M{"created_at": -1})
		cursor, err := feedbackCollection.Find(c.Request.Context(), bson.M{"query_id": c.Param("id")}, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load feedback", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		feedback := []models.Feedback{}
		if err := cursor.All(c.Request.Context(), &feedback); err != nil {
			utils.RespondWithInternalError(c, "Failed to load feedback", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query_id": c.Param("id"),
			"count":    len(feedback),
			"feedback": feedback,
		})
	})

	// GET /api/feedback/stats/summary aggregates ratings across all queries.
	api.GET("/feedback/stats/summary", func(c *gin.Context) {
		cursor, err := feedbackCollection.Find(c.Request.Context(), bson.M{})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load feedback", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		var all []models.Feedback
		if err := cursor.All(c.Request.Context(), &all); err != nil {
			utils.RespondWithInternalError(c, "Failed to load feedback", nil)
			return
		}

		c.JSON(http.StatusOK, summarizeFeedback(all))
	})
}

func summarizeFeedback(all []models.Feedback) models.FeedbackStats {
	stats := models.FeedbackStats{
		TotalFeedback: len(all),
		RatingCounts:  make(map[string]int),
		IssueCounts:   make(map[string]int),
	}

	sum := 0
	for _, fb := range all {
		sum += fb.Rating
		stats.RatingCounts[strconv.Itoa(fb.Rating)]++
		if fb.IssueType != "" {
			stats.IssueCounts[fb.IssueType]++
		}
	}
	if len(all) > 0 {
		stats.AverageRating = float64(sum) / float64(len(all))
	}
	return stats
}
