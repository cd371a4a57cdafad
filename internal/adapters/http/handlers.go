package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/auth"
	"github.com/castform/castform/internal/domain"
	"github.com/castform/castform/internal/storage"
	"github.com/castform/castform/internal/store"
)

// Handlers serves the CRUD plumbing around the relay: identity exchange,
// session rows, recording metadata and artifact upload.
type Handlers struct {
	Store *store.Store
	Auth  *auth.Service
	Blobs storage.Provider
}

const ctxUser = "user"

// RequireAuth resolves the bearer token and stashes the identity.
func (h *Handlers) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := h.Auth.Resolve(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ctxUser, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	u, _ := c.Get(ctxUser)
	return u.(*domain.User)
}

// Login exchanges an asserted identity for a signed token. There is no
// password flow here; upstream auth is out of scope and the relay only
// needs a stable {userId, displayName}.
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	user, err := domain.NewUser(req.Name, req.Email)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.Auth.Issue(user)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	sess, err := h.Store.CreateSession(c.Request.Context(), req.Name, currentUser(c).ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handlers) ListSessions(c *gin.Context) {
	out, err := h.Store.SessionsByHost(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch sessions"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// JoinByCode resolves a short join code to the full session row.
func (h *Handlers) JoinByCode(c *gin.Context) {
	var req struct {
		JoinCode string `json:"joinCode"`
	}
	if err := c.BindJSON(&req); err != nil || req.JoinCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "joinCode is required"})
		return
	}
	sess, err := h.Store.SessionByJoinCode(c.Request.Context(), req.JoinCode)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("join by code")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handlers) GetSession(c *gin.Context) {
	sess, err := h.Store.SessionByID(c.Request.Context(), domain.SessionID(c.Param("id")))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch session"})
		return
	}
	c.JSON(http.StatusOK, sess)
}
