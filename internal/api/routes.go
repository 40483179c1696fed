package api

import (
	"net/http"
	"time"

	"alcyxob/rehabflow/internal/repository"
	"alcyxob/rehabflow/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	records *service.RecordStore,
	orchestrator *service.SessionOrchestrator,
	presigner repository.Presigner, // nil unless the backend can presign downloads
	exportExpiry time.Duration,
) {
	patientHandler := NewPatientHandler(records)
	sessionHandler := NewSessionHandler(orchestrator)
	recordsHandler := NewRecordsHandler(records, presigner, exportExpiry)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})

		patientGroup := apiV1.Group("/patients")
		{
			patientGroup.GET("", patientHandler.ListPatients)
			patientGroup.POST("", patientHandler.CreatePatient)
			patientGroup.GET("/:patientId", patientHandler.GetPatient)
			patientGroup.GET("/:patientId/sessions", patientHandler.GetSessions)
			patientGroup.GET("/:patientId/sessions/:sessionId/routine", patientHandler.GetSessionRoutine)

			// Runs the generation call; blocks until the routine is recorded.
			patientGroup.POST("/:patientId/sessions", sessionHandler.SubmitSession)
		}

		// The single in-progress check-in.
		apiV1.GET("/session", sessionHandler.GetStatus)
		apiV1.DELETE("/session", sessionHandler.ResetSession)

		apiV1.GET("/stats", recordsHandler.GetStats)
		apiV1.GET("/export", recordsHandler.Export)
	}
}
