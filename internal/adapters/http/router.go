package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/adapters/signal"
	"github.com/castform/castform/internal/auth"
	"github.com/castform/castform/internal/config"
	"github.com/castform/castform/internal/storage"
	"github.com/castform/castform/internal/store"
)

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires HTTP routes (REST + WS) with the relay and collaborators.
// - Static files are served from cfg.StaticPath.
// - REST is under /api/*
// - WebSocket upgrade lives at /ws
// - Prometheus metrics at /metrics
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller,
	db *store.Store, authSvc *auth.Service, blobs storage.Provider) *gin.Engine {

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CastformSessions", cookieStore))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &Handlers{Store: db, Auth: authSvc, Blobs: blobs}

	api := r.Group("/api")

	apiAuth := api.Group("/auth")
	apiAuth.POST("/login", h.Login)
	apiAuth.GET("/me", h.RequireAuth(), h.Me)

	apiSessions := api.Group("/sessions", h.RequireAuth())
	apiSessions.POST("", h.CreateSession)
	apiSessions.GET("", h.ListSessions)
	apiSessions.POST("/join", h.JoinByCode)
	apiSessions.GET("/:id", h.GetSession)

	apiRec := api.Group("/recordings")
	apiRec.POST("", h.RequireAuth(), h.UploadRecording)
	apiRec.GET("/session/:sessionId", h.RequireAuth(), h.ListRecordings)
	apiRec.GET("/file/*path", h.ServeRecording)

	r.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.Handle(ctx, c)
	})

	return r
}
