package http

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/domain"
)

// UploadRecording accepts a finalized artifact as multipart form data:
// file + sessionId + type + optional metadata JSON. The blob goes to the
// storage provider, the row to the store. Failures are surfaced, not
// retried.
func (h *Handlers) UploadRecording(c *gin.Context) {
	sessionID := c.PostForm("sessionId")
	recType := c.PostForm("type")
	if sessionID == "" || recType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and type are required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	defer file.Close()

	ext := strings.TrimPrefix(path.Ext(header.Filename), ".")
	if ext == "" {
		ext = "webm"
	}
	storagePath := fmt.Sprintf("%s/%s.%s", sessionID, uuid.NewString(), ext)

	if err := h.Blobs.Save(c.Request.Context(), storagePath, file); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", storagePath).Msg("store artifact")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store recording"})
		return
	}

	rec := &domain.Recording{
		SessionID:   domain.SessionID(sessionID),
		Type:        domain.RecordingType(recType),
		StoragePath: storagePath,
		Metadata:    c.PostForm("metadata"),
	}
	if err := h.Store.CreateRecording(c.Request.Context(), rec); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create recording row")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save recording"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handlers) ListRecordings(c *gin.Context) {
	sid := domain.SessionID(c.Param("sessionId"))
	recs, err := h.Store.RecordingsBySession(c.Request.Context(), sid)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list recordings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch recordings"})
		return
	}

	type recWithURL struct {
		domain.Recording
		URL string `json:"url"`
	}
	out := make([]recWithURL, 0, len(recs))
	for _, rec := range recs {
		u, err := h.Blobs.URL(c.Request.Context(), rec.StoragePath)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("path", rec.StoragePath).Msg("artifact url")
			continue
		}
		out = append(out, recWithURL{Recording: rec, URL: u})
	}
	c.JSON(http.StatusOK, out)
}

// ServeRecording streams an artifact back. Used by the disk provider's
// URLs; GCS hands out signed URLs that bypass this route.
func (h *Handlers) ServeRecording(c *gin.Context) {
	p := strings.TrimPrefix(c.Param("path"), "/")
	if p == "" || strings.Contains(p, "..") {
		c.Status(http.StatusBadRequest)
		return
	}
	r, err := h.Blobs.Open(c.Request.Context(), p)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer r.Close()
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, r)
}
