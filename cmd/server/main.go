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

	mcpserver "github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/sheria-labs/registries/pkg/api"
	"github.com/sheria-labs/registries/pkg/schema"
	"github.com/sheria-labs/registries/pkg/store"
)

type config struct {
	Addr       string `yaml:"addr"`
	DBPath     string `yaml:"db_path"`
	SchemasDir string `yaml:"schemas_dir"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "import":
		cmdImport(os.Args[2:])
	case "template":
		cmdTemplate(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: registries <command>

Commands:
  serve      Start the HTTP + MCP server
  import     Import a CSV file into a registry
  template   Print the CSV template of a registry
`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := loadConfig(*cfgPath, logger)

	reg := schema.NewRegistry(cfg.SchemasDir)
	if err := reg.Load(); err != nil {
		logger.Error("failed to load registry schemas", "error", err)
		os.Exit(1)
	}
	logger.Info("registry schemas loaded", "count", reg.Count())

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	for _, d := range reg.All() {
		if err := st.EnsureRegistry(d); err != nil {
			logger.Error("failed to prepare registry table", "registry", d.ID, "error", err)
			os.Exit(1)
		}
	}

	svc := api.NewService(reg, st, logger)

	// One listener: REST under /v1, MCP tools under /mcp.
	mux := http.NewServeMux()
	mux.Handle("/v1/", api.NewRouter(svc))
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(api.NewMCPServer(svc)))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	// SIGHUP: hot reload registry schemas.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, reloading registry schemas")
			if err := reg.Reload(); err != nil {
				logger.Error("reload failed", "error", err)
			} else {
				logger.Info("registry schemas reloaded", "count", reg.Count())
			}
		}
	}()

	go func() {
		logger.Info("registries listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Shutdown(context.Background())
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:   ":8430",
		DBPath: "registries.db",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}
