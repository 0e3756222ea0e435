// Package httpapi exposes the engine's external HTTP surface: the
// tier-gated POST /execute dispatch, the Pro+ preset CRUD endpoints, and
// the public GET /latest-runs landing-page feed. It owns authentication
// (bearer-token parsing to a gateway.Identity); everything past that is
// gateway.Gateway's job.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sentinel/internal/gateway"
	"sentinel/internal/logging"
	"sentinel/internal/store"
)

// Server wires the gateway and store into gin routes.
type Server struct {
	Engine    *gin.Engine
	gw        *gateway.Gateway
	store     *store.Store
	logger    logging.Logger
	jwtSecret []byte
}

// New builds a Server with routes registered. jwtSecret signs/verifies the
// bearer tokens minted by whatever issues them (out of scope here —
// this engine only verifies).
func New(gw *gateway.Gateway, st *store.Store, logger logging.Logger, accessLogger *logrus.Logger, jwtSecret []byte) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		Engine:    gin.New(),
		gw:        gw,
		store:     st,
		logger:    logger,
		jwtSecret: jwtSecret,
	}
	s.Engine.Use(gin.Recovery(), accessLog(accessLogger))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Engine.GET("/latest-runs", s.handleLatestRuns)

	authed := s.Engine.Group("/")
	authed.Use(s.tokenAuth())
	authed.POST("/execute", s.handleExecute)

	presets := authed.Group("/presets")
	presets.Use(requireProOrMax())
	presets.GET("", s.handleListPresets)
	presets.POST("", s.handleCreatePreset)
	presets.PUT("/:id", s.handleUpdatePreset)
	presets.DELETE("/:id", s.handleDeletePreset)
}
