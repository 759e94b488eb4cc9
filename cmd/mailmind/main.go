package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mailmind/internal/catalog"
	"mailmind/internal/common/fsutil"
	"mailmind/internal/config"
	"mailmind/internal/download"
	"mailmind/internal/engine"
	"mailmind/internal/httpapi"
	"mailmind/internal/manager"
	"mailmind/internal/queue"
	"mailmind/internal/resolver"
)

var (
	flagAddr       string
	flagModelsDir  string
	flagConfigPath string
	flagLogLevel   string

	rootCmd = &cobra.Command{
		Use:   "mailmind",
		Short: "On-device generative AI daemon for the mail client",
		Long: `mailmind manages local GGUF model downloads, resolves the best
available inference tier, and serves generation, classification and
background mail processing over HTTP.`,
		RunE: run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address, e.g. :8080")
	rootCmd.Flags().StringVar(&flagModelsDir, "models-dir", "", "Directory for downloaded *.gguf model files")
	rootCmd.Flags().StringVar(&flagConfigPath, "config", "", "Config file (.yaml, .json or .toml)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger(flagLogLevel)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	applyFlagOverrides(&cfg)
	applyDefaults(&cfg)

	modelsDir, err := fsutil.ExpandHome(cfg.ModelsDir)
	if err != nil {
		return err
	}

	downloads := download.New(download.Config{
		Dir:     modelsDir,
		Catalog: catalog.Models,
		Logger:  log.With().Str("component", "download").Logger(),
	})

	llama := engine.NewLlama(engine.Config{
		ContextTokens: cfg.Engine.ContextTokens,
		GPULayers:     cfg.Engine.GPULayers,
		Threads:       cfg.Engine.Threads,
		Temperature:   cfg.Engine.Temperature,
		TopK:          cfg.Engine.TopK,
		TopP:          cfg.Engine.TopP,
	}, log.With().Str("component", "engine").Logger())
	defer llama.Unload()

	res := resolver.New(resolver.Config{
		Model:  llama,
		Store:  downloads,
		Logger: log.With().Str("component", "resolver").Logger(),
	})
	defer res.Close()

	q := queue.New(queue.Config{
		Categorizer: queue.NewEngineCategorizer(res, nil),
		Spam:        queue.NewKeywordSpamChecker(),
		ChunkSize:   cfg.ChunkSize,
		SpamWorkers: cfg.SpamWorkers,
		Logger:      log.With().Str("component", "queue").Logger(),
	})
	defer q.Cancel()

	mgr := manager.New(manager.Config{
		Downloads: downloads,
		Resolver:  res,
		Queue:     q,
		Logger:    log.With().Str("component", "manager").Logger(),
	})

	// Base context cancels in-flight work on shutdown.
	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	mgr.SetBaseContext(baseCtx)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log.With().Str("component", "http").Logger())

	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(mgr)}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", modelsDir).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-baseCtx.Done():
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().
		Logger()
}

func loadConfig(log zerolog.Logger) (config.Config, error) {
	if flagConfigPath == "" {
		return config.Config{}, nil
	}
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	log.Info().Str("path", flagConfigPath).Msg("configuration loaded")
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config) {
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagModelsDir != "" {
		cfg.ModelsDir = flagModelsDir
	}
}

func applyDefaults(cfg *config.Config) {
	if cfg.Addr == "" {
		if v := os.Getenv("MAILMIND_ADDR"); v != "" {
			cfg.Addr = v
		} else {
			cfg.Addr = ":8080"
		}
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "~/.mailmind/models"
	}
}
