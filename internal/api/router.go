package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/beacon/internal/api/handlers"
	"github.com/your-org/beacon/internal/api/ws"
	"github.com/your-org/beacon/internal/auth"
	"github.com/your-org/beacon/internal/enroll"
	"github.com/your-org/beacon/internal/recognize"
	"github.com/your-org/beacon/internal/registry"
	"github.com/your-org/beacon/internal/relay"
)

type RouterConfig struct {
	APIKey    string
	Registry  *registry.Registry
	Relay     *relay.Relay
	Enroll    *enroll.Pipeline
	Recognize *recognize.Service
	Hub       *ws.Hub
	Checks    map[string]handlers.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.Use(auth.IdentityMiddleware())

	// WebSocket event feed
	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	// Device binding & location relay
	deviceH := handlers.NewDeviceHandler(cfg.Registry, cfg.Relay)
	v1.POST("/device", deviceH.Rebind)
	v1.POST("/devices/:deviceId/locate", deviceH.RequestLocation)
	v1.GET("/devices/:deviceId/reports", deviceH.ListReports)
	v1.POST("/location", deviceH.ReportLocation)
	v1.GET("/location/requested", deviceH.LocationRequested)

	// Face enrollment & recognition
	faceH := handlers.NewFaceHandler(cfg.Enroll, cfg.Recognize)
	v1.POST("/faces", faceH.Enroll)
	v1.GET("/faces", faceH.List)
	v1.DELETE("/faces/:faceId", faceH.Delete)
	v1.POST("/faces/reset", faceH.Reset)
	v1.POST("/devices/:deviceId/recognise", faceH.Recognise)

	return r
}
