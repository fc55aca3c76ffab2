package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/reunite/internal/api/handlers"
	"github.com/your-org/reunite/internal/api/ws"
	"github.com/your-org/reunite/internal/auth"
	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/queue"
	"github.com/your-org/reunite/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
	Matcher  *match.Service
	// Photo-matching distance cap and video defaults.
	MatchThreshold    float64
	VideoThreshold    float64
	VideoMaxFileBytes int64
	// EmbedFn extracts a face embedding from image bytes (from vision engine).
	EmbedFn func(imageData []byte) ([]float32, error)
	// MatchFn triggers a background incremental match for a new record.
	MatchFn func(id uuid.UUID, kind match.Kind)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Cases
	caseH := handlers.NewCaseHandler(cfg.DB, cfg.MinIO)
	caseH.EmbedFn = cfg.EmbedFn
	caseH.MatchFn = cfg.MatchFn
	v1.POST("/cases", caseH.Create)
	v1.GET("/cases", caseH.List)
	v1.GET("/cases/:id", caseH.Get)
	v1.DELETE("/cases/:id", caseH.Delete)
	v1.GET("/cases/:id/photo", caseH.Photo)

	// Sightings
	sightingH := handlers.NewSightingHandler(cfg.DB, cfg.MinIO)
	sightingH.EmbedFn = cfg.EmbedFn
	sightingH.MatchFn = cfg.MatchFn
	v1.POST("/sightings", sightingH.Create)
	v1.GET("/sightings", sightingH.List)
	v1.GET("/sightings/:id", sightingH.Get)
	v1.DELETE("/sightings/:id", sightingH.Delete)
	v1.GET("/sightings/:id/photo", sightingH.Photo)

	// Matching
	matchH := handlers.NewMatchingHandler(cfg.DB, cfg.Matcher, cfg.MatchThreshold)
	matchH.EmbedFn = cfg.EmbedFn
	v1.POST("/matching/run", matchH.RunAll)
	v1.POST("/cases/:id/match", matchH.MatchCase)
	v1.POST("/sightings/:id/match", matchH.MatchSighting)
	v1.POST("/matches/confirm", matchH.Confirm)
	v1.GET("/matches/recent", matchH.Recent)
	v1.GET("/stats", matchH.Stats)
	v1.POST("/search/similar", matchH.Similar)

	// Video scans
	videoH := handlers.NewVideoHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.VideoThreshold, cfg.VideoMaxFileBytes)
	v1.POST("/videos", videoH.Upload)
	v1.GET("/videos/:id", videoH.Status)
	v1.GET("/videos/:id/detections", videoH.Detections)
	v1.GET("/cases/:id/videos", videoH.ListByCase)
	v1.GET("/cases/:id/detections", videoH.CaseDetections)
	v1.GET("/detections/:id/crop", videoH.Crop)

	return r
}
