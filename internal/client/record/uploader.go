package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/castform/castform/internal/domain"
)

// Uploader pushes finalized artifacts to the studio server's recording
// endpoint. Failures are surfaced to the caller, not retried.
type Uploader struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewUploader(baseURL, token string) *Uploader {
	return &Uploader{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Upload sends one artifact as multipart form data and returns the stored
// metadata row.
func (u *Uploader) Upload(ctx context.Context, sessionID domain.SessionID, recType domain.RecordingType, art Artifact) (*domain.Recording, error) {
	if art.Empty() {
		return nil, nil
	}

	meta, _ := json.Marshal(map[string]any{
		"duration":    art.Duration.Seconds(),
		"pausedTotal": art.PausedTotal.Seconds(),
		"startedAt":   art.StartedAt.UTC().Format(time.RFC3339),
		"mimeType":    art.MimeType,
	})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("sessionId", string(sessionID))
	_ = w.WriteField("type", string(recType))
	_ = w.WriteField("metadata", string(meta))
	part, err := w.CreateFormFile("file", art.ID+".webm")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(art.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.BaseURL+"/api/recordings", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	resp, err := u.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload recording: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upload recording: status %d: %s", resp.StatusCode, b)
	}

	var rec domain.Recording
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &rec, nil
}
