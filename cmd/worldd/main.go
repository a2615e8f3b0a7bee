// Command worldd is a reference daemon wiring the world orchestrator
// behind an HTTP/websocket transport. Transport shape is intentionally
// thin — the interesting behavior lives in bus/, agentsub/, and
// world/; this just exposes it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/worldcore/config"
	"github.com/kadirpekel/worldcore/llm"
	"github.com/kadirpekel/worldcore/logctx"
	"github.com/kadirpekel/worldcore/observability"
	"github.com/kadirpekel/worldcore/storage"
	"github.com/kadirpekel/worldcore/storage/filestore"
	"github.com/kadirpekel/worldcore/storage/memstore"
	"github.com/kadirpekel/worldcore/storage/sqlstore"
	"github.com/kadirpekel/worldcore/tools"
	"github.com/kadirpekel/worldcore/world"
)

func main() {
	configPath := flag.String("config", "", "path to a worldcore YAML config file")
	addr := flag.String("addr", ":8088", "HTTP listen address")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	level, err := logctx.ParseLevel(*logLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logctx.Init(level, os.Stderr, "text")
	log := logctx.Default()

	if err := config.LoadEnvFiles(); err != nil {
		log.Warn("loading .env files", "error", err)
	}

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("loading config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.SetDefaults()

	store, err := buildStorage(cfg.Storage)
	if err != nil {
		log.Error("building storage backend", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	providers := buildProviders(cfg)
	toolReg := buildTools(cfg)

	metrics := observability.NewMetrics(&observability.MetricsConfig{Enabled: true})
	if _, err := observability.InitTracerProvider(observability.TracingConfig{Enabled: false}); err != nil {
		log.Error("initializing tracer", "error", err)
		os.Exit(1)
	}

	facade := world.NewFacade(store, providers, toolReg)
	facade.SetMetrics(metrics)

	srv := newServer(facade, metrics)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: srv.router(),
	}

	go func() {
		log.Info("worldd listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("worldd shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func buildStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "file":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("storage.dir is required for the file backend")
		}
		return filestore.New(cfg.Dir)
	case "sql":
		return sqlstore.Open(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// buildProviders registers one Provider per configured entry. Each
// concrete Provider reports a fixed Name() ("openai", "anthropic", ...),
// so when several entries share a type only one of them takes effect,
// and which one is not defined (cfg.Providers is a map) — agents select
// a provider by that type name via Agent.Provider.
func buildProviders(cfg *config.Config) *llm.Registry {
	reg := llm.NewRegistry()
	for name, p := range cfg.Providers {
		switch p.Type {
		case "openai":
			reg.Register(llm.NewOpenAI(p.ResolvedAPIKey(), p.BaseURL))
		case "anthropic":
			reg.Register(llm.NewAnthropic(p.ResolvedAPIKey(), p.BaseURL))
		case "ollama":
			reg.Register(llm.NewOllama(p.BaseURL))
		case "gemini":
			gem, err := llm.NewGemini(context.Background(), p.ResolvedAPIKey())
			if err != nil {
				slog.Error("skipping gemini provider", "name", name, "error", err)
				continue
			}
			reg.Register(gem)
		default:
			slog.Warn("skipping provider with unknown type", "name", name, "type", p.Type)
		}
	}
	return reg
}

func buildTools(cfg *config.Config) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewShellTool())
	reg.Register(tools.NewReadFileTool())
	reg.Register(tools.NewListFilesTool())
	reg.Register(tools.NewGrepTool())
	reg.Alias("grep_search", "grep")
	if cfg.Defaults.SkillsDir != "" {
		reg.Register(tools.NewSkillTool(cfg.Defaults.SkillsDir))
	}
	return reg
}
