// Package http wires the gin router: REST room lifecycle plus the
// WebSocket relay endpoint.
package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"huddle/internal/adapters/signal"
	"huddle/internal/app"
	"huddle/internal/config"
	"huddle/internal/core"
)

// ClientTokenMiddleware issues a stable per-browser token; the signal
// adapter derives connection ids from it.
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

func SetupRouter(ctx context.Context, cfg *config.Config, store core.RoomStore, ws *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", sessionStore))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	rooms := &RoomController{
		Store:  store,
		Policy: app.NewAvailabilityPolicy(cfg.JoinGrace),
	}

	api := r.Group("/api")
	api.POST("/rooms", rooms.CreateRoom)
	api.POST("/rooms/schedule", rooms.ScheduleRoom)
	api.GET("/rooms", rooms.ListRooms)
	api.GET("/rooms/:roomId", rooms.GetRoom)
	api.POST("/rooms/:roomId/join", rooms.JoinRoom)
	api.POST("/rooms/:roomId/leave", rooms.LeaveRoom)
	api.POST("/rooms/:roomId/end", rooms.EndRoom)
	api.GET("/rooms/:roomId/messages", rooms.GetMessages)

	api.GET("/ws", func(c *gin.Context) {
		ws.HandleWS(ctx, c)
	})

	return r
}
