/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/beanstore/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the beanstore REST API server.

An api_key of "auto" generates a key for this run only and prints it.
An empty api_key disables authentication.

Examples:
  beanstore serve
  beanstore serve --port 9000 --bind 0.0.0.0 --engine bolt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		applyServerFlags(cmd, cfg)
		return runServer(cmd, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	cmd.Flags().String("api-key", "", "API key required on /api/v1 requests")
}

func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("bind") {
		cfg.Bind, _ = flags.GetString("bind")
	}
	if flags.Changed("api-key") {
		cfg.Security.APIKey, _ = flags.GetString("api-key")
	}
}

// resolveAPIKey replaces the "auto" placeholder with a generated key.
func resolveAPIKey(key string) (string, bool, error) {
	if key != "auto" {
		return key, false, nil
	}
	generated, err := config.GenerateSecureKey(32)
	if err != nil {
		return "", false, err
	}
	return generated, true, nil
}

func runServer(cmd *cobra.Command, cfg *config.Config) error {
	key, generated, err := resolveAPIKey(cfg.Security.APIKey)
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}
	cfg.Security.APIKey = key
	if generated {
		cmd.Printf("Generated API key for this run: %s\n", key)
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := stopOnFailure(ctx, app.Runner.Failed())
	defer cancel()

	cmd.Printf("Starting beanstore on %s:%d\n", cfg.Bind, cfg.Port)
	cmd.Printf("Data directory: %s (%s)\n", cfg.DataDir, cfg.Storage.Engine)

	starter := container.GetServerFactory().CreateServerStarter()
	if err := starter.StartServer(ctx, app.NewServer().Router(app.Registry), app.ServerConfig()); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	if err := app.Runner.Err(); err != nil {
		return fmt.Errorf("server stopped after store failure: %w", err)
	}
	if ctx.Err() != nil {
		cmd.Println("Server stopped")
	}
	return nil
}

// stopOnFailure returns a context that also ends when failed is closed.
func stopOnFailure(parent context.Context, failed <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-failed:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
