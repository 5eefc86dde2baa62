package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/api"
	"github.com/tendant/simple-file/pkg/simplefile/config"
	"github.com/tendant/simple-file/pkg/simplefile/metrics"
)

type ServerConfig struct {
	ConfigFile    string `env:"FILE_CONFIG" env-description:"optional YAML config file"`
	JWTSecret     string `env:"FILE_JWT_SECRET" env-description:"HS256 secret required for uploads when set"`
	RemoteSources bool   `env:"FILE_REMOTE_SOURCES" env-description:"allow uploads to name a URL to fetch"`
}

// sweeper is implemented by drivers whose entries can expire
type sweeper interface {
	RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger)
}

func main() {
	var serverConfig ServerConfig
	if err := cleanenv.ReadEnv(&serverConfig); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(serverConfig.ConfigFile)
	if err != nil {
		slog.Error("Failed to load file configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.Default()
	m := metrics.New(prometheus.DefaultRegisterer)

	svc, err := cfg.BuildService(
		simplefile.WithLogger(logger),
		simplefile.WithEventSink(simplefile.MultiEventSink{
			simplefile.NewLoggingEventSink(logger),
			m.EventSink(),
		}),
	)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	// construct the driver now so configuration errors stop the server
	driver, err := svc.Driver()
	if err != nil {
		slog.Error("Failed to initialize driver", "driver", cfg.Driver, "err", err)
		os.Exit(1)
	}
	if sw, ok := driver.(sweeper); ok && cfg.Badger.SweepInterval > 0 {
		go sw.RunSweeper(context.Background(), cfg.Badger.SweepInterval, logger)
	}

	opts := []api.HandlerOption{
		api.WithLogger(logger),
		api.WithRemoteSources(serverConfig.RemoteSources),
		api.WithTempDir(cfg.TempDir),
	}
	if serverConfig.JWTSecret != "" {
		opts = append(opts, api.WithAuth(jwtauth.New("HS256", []byte(serverConfig.JWTSecret), nil)))
	}
	handler := api.NewHandler(svc, opts...)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	server.R.Handle("/metrics", promhttp.Handler())

	server.R.Group(func(r chi.Router) {
		r.Use(m.Middleware)
		r.Mount("/file", handler.Routes())
		if strings.HasPrefix(cfg.AssetBaseURL, "/") {
			prefix := strings.TrimSuffix(cfg.AssetBaseURL, "/")
			r.Handle(prefix+"/*", api.AssetsHandler(prefix))
		}
	})

	slog.Info("Serving files", "driver", cfg.Driver, "upload_max_size_mb", cfg.UploadMaxSize)
	server.Run()
}
