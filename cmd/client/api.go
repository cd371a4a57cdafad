package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/castform/castform/internal/domain"
)

// apiClient covers the two REST calls the headless client needs before it
// can open the signaling socket: login and join-code resolution.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: &http.Client{Timeout: 10 * time.Second}}
}

func (a *apiClient) post(ctx context.Context, path, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, b)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (a *apiClient) login(ctx context.Context, name, email string) (string, *domain.User, error) {
	var out struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	err := a.post(ctx, "/api/auth/login", "", map[string]string{"name": name, "email": email}, &out)
	if err != nil {
		return "", nil, err
	}
	return out.Token, out.User, nil
}

func (a *apiClient) joinByCode(ctx context.Context, token, code string) (*domain.Session, error) {
	var sess domain.Session
	err := a.post(ctx, "/api/sessions/join", token, map[string]string{"joinCode": code}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
