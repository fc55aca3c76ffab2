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

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/reunite/internal/config"
	"github.com/your-org/reunite/internal/models"
	"github.com/your-org/reunite/internal/observability"
	"github.com/your-org/reunite/internal/queue"
	"github.com/your-org/reunite/internal/storage"
	"github.com/your-org/reunite/internal/video"
	"github.com/your-org/reunite/internal/vision"
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

	slog.Info("starting Reunite video scanner",
		"workers", cfg.Video.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// The scanner is useless without the models, so unlike the API it
	// refuses to start when ONNX init fails.
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

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
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Vision engine
	engine, err := vision.NewEngine(cfg.Vision)
	if err != nil {
		slog.Error("init vision engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	slog.Info("vision engine initialized")

	sampler := video.NewSampler(cfg.Video)
	scanner := video.NewScanner(db, minioStore, engine, sampler, cfg.Video.FlushFrames, cfg.Video.CropPadding)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner.OnDetection = func(ctx context.Context, det models.VideoDetection) {
		vid := det.VideoID
		did := det.ID
		ts := det.TimestampSeconds
		evt := models.MatchEvent{
			Type:             "video_detection",
			CaseID:           det.CaseID,
			VideoID:          &vid,
			DetectionID:      &did,
			Confidence:       det.Confidence,
			TimestampSeconds: &ts,
			OccurredAt:       time.Now().UTC(),
		}
		if err := producer.PublishEvent(ctx, det.CaseID.String(), evt); err != nil {
			slog.Error("publish detection event", "error", err)
		}
	}

	// Start consuming scan tasks
	err = consumeScans(ctx, cfg, scanner)
	if err != nil {
		slog.Error("start scan consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("scanner metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scanner...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("scanner stopped")
}

func consumeScans(ctx context.Context, cfg *config.Config, scanner *video.Scanner) error {
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	return consumer.ConsumeScans(ctx, "video-scanners", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.ScanTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal scan task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		// Keep the delivery alive while the scan runs.
		stop := make(chan struct{})
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					_ = msg.InProgress()
				}
			}
		}()
		defer close(stop)

		if err := scanner.Process(ctx, task.VideoID); err != nil {
			return fmt.Errorf("scan video %s: %w", task.VideoID, err)
		}
		return nil
	}, cfg.Video.WorkerCount)
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
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
