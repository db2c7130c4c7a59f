package routes

import (
	"fmt"
	"net/http"
	"time"

	"exam-tutor-platform/internal/config"
	"exam-tutor-platform/internal/queue"
	"exam-tutor-platform/services"
	"exam-tutor-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
)

func SetupAdminRoutes(
	router *gin.Engine,
	cfg *config.Config,
	mongoClient *mongo.Client,
	index *services.VectorIndex,
	asynqClient *asynq.Client,
) {
	admin := router.Group("/api/admin")

	exporter := services.NewExportService(mongoClient.Database(cfg.DBName))

	// GET /api/admin/stats reports index contents.
	admin.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, index.Stats())
	})

	// POST /api/admin/reload queues a full knowledge base re-ingest.
	admin.POST("/reload", func(c *gin.Context) {
		task, err := queue.NewReloadKBTask(cfg.KnowledgeBaseDir)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build reload task", nil)
			return
		}
		info, err := asynqClient.Enqueue(task)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to queue reload", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"task_id": info.ID,
			"queue":   info.Queue,
		})
	})

	// POST /api/admin/refresh re-reads the persisted index artifacts so
	// the API serves the state the worker last rebuilt, without a restart.
	admin.POST("/refresh", func(c *gin.Context) {
		if err := index.Reload(); err != nil {
			utils.RespondWithInternalError(c, "Failed to refresh index", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, index.Stats())
	})

	// GET /api/admin/export streams query history as a spreadsheet.
	admin.GET("/export", func(c *gin.Context) {
		var req services.HistoryExportRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid export parameters", gin.H{"error": err.Error()})
			return
		}

		data, count, err := exporter.ExportHistory(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithInternalError(c, "Export failed", gin.H{"error": err.Error()})
			return
		}

		filename := fmt.Sprintf("query_history_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("X-Record-Count", fmt.Sprintf("%d", count))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	})
}
