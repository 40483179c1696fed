package api

import (
	"fmt"
	"net/http"
	"time"

	"alcyxob/rehabflow/internal/repository"
	"alcyxob/rehabflow/internal/service"
	"alcyxob/rehabflow/internal/storage"

	"github.com/gin-gonic/gin"
)

// RecordsHandler serves collection-wide views: stats and export.
type RecordsHandler struct {
	records   *service.RecordStore
	presigner repository.Presigner
	expiry    time.Duration
}

// NewRecordsHandler creates a new RecordsHandler. presigner may be nil.
func NewRecordsHandler(records *service.RecordStore, presigner repository.Presigner, expiry time.Duration) *RecordsHandler {
	if expiry <= 0 {
		expiry = storage.DefaultPresignedURLExpiry
	}
	return &RecordsHandler{records: records, presigner: presigner, expiry: expiry}
}

// GetStats returns patient and session counts.
func (h *RecordsHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.records.Stats(time.Now()))
}

// Export returns a temporary download link when the backend supports it,
// otherwise the snapshot document itself.
func (h *RecordsHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	if h.presigner != nil {
		url, err := h.presigner.PresignDownload(ctx, h.records.Slot(), h.expiry)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(h.expiry.Seconds())})
		return
	}

	doc, err := h.records.Export(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.records.Slot()+".json"))
	c.Data(http.StatusOK, storage.ContentTypeJSON, doc)
}
