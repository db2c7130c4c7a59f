package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"exam-tutor-platform/internal/ai"
	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/models"
	"exam-tutor-platform/services"
	"exam-tutor-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func SetupQueryRoutes(router *gin.Engine, cfg *config.Config, mongoClient *mongo.Client, tutor *services.TutorService) {
	api := router.Group("/api")

	queriesCollection := mongoClient.Database(cfg.DBName).Collection("queries")

	// POST /api/query answers a new question.
	api.POST("/query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		resp, err := tutor.Answer(c.Request.Context(), req.Question, req.Subject)
		if err != nil {
			respondTutorError(c, err)
			return
		}

		persistQuery(c.Request.Context(), queriesCollection, resp, time.Since(start), "")
		c.JSON(http.StatusOK, resp)
	})

	// POST /api/query/:id/followup answers a follow-up against a stored query.
	api.POST("/query/:id/followup", func(c *gin.Context) {
		var req models.FollowUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		parentID := c.Param("id")
		var parent models.QueryRecord
		err := queriesCollection.FindOne(c.Request.Context(), bson.M{"query_id": parentID}).Decode(&parent)
		if err != nil {
			utils.RespondWithNotFound(c, "Query not found")
			return
		}

		start := time.Now()
		resp, err := tutor.FollowUp(c.Request.Context(), &parent, req.Question)
		if err != nil {
			respondTutorError(c, err)
			return
		}

		persistQuery(c.Request.Context(), queriesCollection, resp, time.Since(start), parentID)
		c.JSON(http.StatusOK, resp)
	})

	// GET /api/query/:id returns a stored query with its solution.
	api.GET("/query/:id", func(c *gin.Context) {
		var record models.QueryRecord
		err := queriesCollection.FindOne(c.Request.Context(), bson.M{"query_id": c.Param("id")}).Decode(&record)
		if err != nil {
			utils.RespondWithNotFound(c, "Query not found")
			return
		}
		c.JSON(http.StatusOK, record)
	})

	// GET /api/history lists recent queries, optionally by subject.
	api.GET("/history", func(c *gin.Context) {
		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		if err != nil || limit <= 0 || limit > 100 {
			limit = 20
		}

		filter := bson.M{}
		if subject := c.Query("subject"); subject != "" {
			filter["subject"] = subject
		}

		opts := options.Find().
			SetSort(bson.M{"created_at": -1}).
			SetLimit(limit)

		cursor, err := queriesCollection.Find(c.Request.Context(), filter, opts)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load history", nil)
			return
		}
		defer cursor.Close(c.Request.Context())

		records := []models.QueryRecord{}
		if err := cursor.All(c.Request.Context(), &records); err != nil {
			utils.RespondWithInternalError(c, "Failed to load history", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"count":   len(records),
			"queries": records,
		})
	})
}

// respondTutorError maps answering failures to HTTP statuses. Key
// exhaustion is a capacity condition, not a server bug.
func respondTutorError(c *gin.Context, err error) {
	if errors.Is(err, ai.ErrKeysExhausted) {
		utils.RespondWithServiceUnavailable(c, "Answering capacity exhausted. Please try again shortly.")
		return
	}
	utils.RespondWithInternalError(c, "Failed to answer the question", gin.H{"error": err.Error()})
}

// persistQuery stores the answered query for history and feedback.
// Persistence failures are logged, not surfaced; the student already
// has the answer.
func persistQuery(ctx context.Context, col *mongo.Collection, resp *models.QueryResponse, latency time.Duration, parentID string) {
	record := models.QueryRecord{
		QueryID:    resp.QueryID,
		Question:   resp.Question,
		Subject:    resp.Subject,
		QueryType:  resp.QueryType,
		Solution:   resp.Solution,
		Sources:    resp.Sources,
		TokensUsed: resp.TokensUsed,
		LatencyMs:  latency.Milliseconds(),
		ParentID:   parentID,
		CreatedAt:  resp.CreatedAt,
	}
	if _, err := col.InsertOne(ctx, record); err != nil {
		logger.Error("failed to persist query", "query_id", resp.QueryID, "error", err)
	}
}
