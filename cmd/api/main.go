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
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/beacon/internal/api"
	"github.com/your-org/beacon/internal/api/handlers"
	"github.com/your-org/beacon/internal/api/ws"
	"github.com/your-org/beacon/internal/config"
	"github.com/your-org/beacon/internal/enroll"
	"github.com/your-org/beacon/internal/observability"
	"github.com/your-org/beacon/internal/queue"
	"github.com/your-org/beacon/internal/recognize"
	"github.com/your-org/beacon/internal/registry"
	"github.com/your-org/beacon/internal/relay"
	"github.com/your-org/beacon/internal/storage"
	"github.com/your-org/beacon/internal/vision"
	"github.com/your-org/beacon/pkg/dto"
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

	slog.Info("starting beacon API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background(), cfg.Vision.EmbeddingDim); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Relay location/recognition events to WebSocket clients.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var head struct {
			Type     string `json:"type"`
			DeviceID string `json:"device_id"`
		}
		if err := json.Unmarshal(msg.Data(), &head); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:     head.Type,
			DeviceID: head.DeviceID,
			Data:     json.RawMessage(msg.Data()),
		})

		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Initialize ONNX Runtime for face enrollment and recognition.
	var provider *vision.Provider

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, enroll/recognise unavailable", "error", err)
	} else {
		provider, err = vision.NewProvider(cfg.Vision)
		if err != nil {
			slog.Warn("vision provider init failed, enroll/recognise unavailable", "error", err)
			provider = nil
		} else {
			defer provider.Close()
			defer ort.DestroyEnvironment()
			slog.Info("vision provider ready", "embedding_dim", provider.EmbeddingDim())
		}
	}

	// Wire services
	reg := registry.New(db)
	rel := relay.New(reg, db, producer)

	var enrollPipeline *enroll.Pipeline
	var recognizeSvc *recognize.Service
	if provider != nil {
		enrollPipeline = enroll.New(db, minioStore, provider)
		recognizeSvc = recognize.New(reg, db, provider, producer, float32(cfg.Vision.MatchThreshold))
	} else {
		enrollPipeline = enroll.New(db, minioStore, nil)
		recognizeSvc = recognize.New(reg, db, nil, producer, float32(cfg.Vision.MatchThreshold))
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		Registry:  reg,
		Relay:     rel,
		Enroll:    enrollPipeline,
		Recognize: recognizeSvc,
		Hub:       hub,
		Checks: map[string]handlers.Pinger{
			"postgres": db,
			"minio":    minioStore,
			"nats": handlers.PingerFunc(func(ctx context.Context) error {
				return producer.Ping()
			}),
		},
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
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
