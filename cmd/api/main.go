package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/reunite/internal/api"
	"github.com/your-org/reunite/internal/api/ws"
	"github.com/your-org/reunite/internal/config"
	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/observability"
	"github.com/your-org/reunite/internal/queue"
	"github.com/your-org/reunite/internal/storage"
	"github.com/your-org/reunite/internal/vision"
	"github.com/your-org/reunite/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting Reunite API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcast match events from NATS via WebSocket
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var evt models.MatchEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:             evt.Type,
			CaseID:           evt.CaseID,
			SightingID:       evt.SightingID,
			VideoID:          evt.VideoID,
			DetectionID:      evt.DetectionID,
			Confidence:       evt.Confidence,
			TimestampSeconds: evt.TimestampSeconds,
			OccurredAt:       evt.OccurredAt.Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Initialize ONNX Runtime for face extraction. The API degrades rather
	// than dying when models are missing: registration stores placeholder
	// embeddings and matching endpoints report the engine unavailable.
	var engine *vision.Engine
	var embedFn func([]byte) ([]float32, error)
	var engineCap match.Capability

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, face extraction unavailable", "error", err)
	} else {
		engine, err = vision.NewEngine(cfg.Vision)
		if err != nil {
			slog.Warn("vision engine init failed, face extraction unavailable", "error", err)
		} else {
			defer engine.Close()
			defer ort.DestroyEnvironment()
			engineCap = engine
			embedFn = engine.EmbedPhoto
			slog.Info("vision engine ready")
		}
	}

	matcher := match.NewService(db, engineCap, nil)
	matcher.OnMatch = func(ctx context.Context, caseID, sightingID uuid.UUID, distance float64) {
		sid := sightingID
		evt := models.MatchEvent{
			Type:       "sighting_matched",
			CaseID:     caseID,
			SightingID: &sid,
			Distance:   distance,
			Confidence: match.Confidence(distance),
			OccurredAt: time.Now().UTC(),
		}
		if err := producer.PublishEvent(ctx, caseID.String(), evt); err != nil {
			slog.Error("publish match event", "error", err)
		}
	}

	// Incremental matching for new records runs detached from the request.
	matchFn := func(id uuid.UUID, kind match.Kind) {
		go func() {
			mctx, mcancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer mcancel()
			report := matcher.MatchOne(mctx, id, kind, cfg.Match.Threshold)
			if !report.Status {
				slog.Warn("incremental match failed", "id", id, "kind", kind, "message", report.Message)
			}
		}()
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:            cfg.Server.APIKey,
		DB:                db,
		MinIO:             minioStore,
		Producer:          producer,
		Hub:               hub,
		Matcher:           matcher,
		MatchThreshold:    cfg.Match.Threshold,
		VideoThreshold:    cfg.Video.Threshold,
		VideoMaxFileBytes: cfg.Video.MaxFileBytes,
		EmbedFn:           embedFn,
		MatchFn:           matchFn,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Minute, // video uploads
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
