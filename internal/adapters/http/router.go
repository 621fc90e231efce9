package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"liveroom/internal/auth"
	"liveroom/internal/config"
)

func SetupRouter(cfg *config.Config, authSvc *auth.Service, users *AuthController, rooms *RoomController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api/v1")
	api.POST("/auth/register", users.Register)
	api.POST("/auth/login", users.Login)

	authed := api.Group("", authSvc.Middleware())
	authed.POST("/rooms", rooms.Create)
	authed.GET("/rooms", rooms.List)
	authed.GET("/rooms/:id", rooms.Get)
	authed.GET("/rooms/:id/participants", rooms.Participants)
	authed.POST("/rooms/:id/join", rooms.Join)
	authed.POST("/rooms/:id/leave", rooms.Leave)
	authed.PATCH("/rooms/:id/seats/:index", rooms.SeatAction)
	authed.PATCH("/rooms/:id/role", rooms.Role)
	authed.PATCH("/rooms/:id/close", rooms.Close)
	authed.GET("/rooms/:id/events", rooms.Events)
	authed.GET("/rtc/token", rooms.RTCToken)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
