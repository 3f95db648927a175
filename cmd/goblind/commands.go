package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fuaadabdullah/goblin-runtime/internal/catalog"
	"github.com/fuaadabdullah/goblin-runtime/internal/runtime"
)

// defaultShutdownGrace bounds how long a running server is given to drain
// in-flight requests after a shutdown signal before the process exits.
const defaultShutdownGrace = 10 * time.Second

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "goblind",
		Short:        "Multi-agent LLM orchestration server",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd(), buildValidateCatalogCmd(), buildVersionCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration server",
		Long: `Start the HTTP/WebSocket server: loads the agent catalog, initializes
the configured LLM providers, and serves task execution, orchestration,
cost, and history endpoints until interrupted.

Graceful shutdown is triggered on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the optional YAML configuration file")
	return cmd
}

func buildValidateCatalogCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "validate-catalog",
		Short: "Load and validate the agent catalog without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(catalogPath)
			if err != nil {
				return err
			}
			fmt.Printf("catalog valid: %d agents, %d guilds, %d tools, %d scheduled triggers\n",
				len(cat.Agents()), len(cat.Guilds()), len(cat.Tools()), len(cat.ScheduledTriggers()))
			for _, warning := range cat.Warnings() {
				fmt.Printf("warning: %s\n", warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the catalog YAML document")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("goblind %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}

// runServe resolves configuration, builds the runtime, and serves until a
// shutdown signal arrives. It returns a non-nil error only for a startup
// failure; a normal signal-triggered shutdown returns nil.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := runtime.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	rt, err := runtime.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	rt.Logger.Info("starting goblin-runtime server",
		"version", version, "addr", cfg.Server.Addr, "catalog_path", cfg.CatalogPath,
		"persistence", cfg.Persistence.Backend, "providers", rt.Registry.Len())

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serveErr := rt.Serve(runCtx)
	if serveErr != nil {
		rt.Logger.Error("server exited with error", "error", serveErr)
	} else {
		rt.Logger.Info("server stopped, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownGrace)
	defer shutdownCancel()
	if err := rt.Shutdown(shutdownCtx); err != nil {
		rt.Logger.Warn("tracer shutdown error", "error", err)
	}
	return serveErr
}
