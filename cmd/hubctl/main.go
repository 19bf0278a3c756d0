// Package main implements hubctl, the CLI for a running projecthubd.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/projecthub/internal/client"
)

var (
	// serverURL is the base URL of the projecthubd HTTP server
	serverURL string
	// outputJSON prints raw API responses
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hubctl",
	Short: "CLI for the projecthub daemon",
	Long: `hubctl talks to a running projecthubd over HTTP.
It lists and registers projects, switches the active project and opens
the terminal dashboard.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:9191", "projecthubd server URL")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(healthCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check projecthubd server health",
	Long: `Check the health status of the projecthubd HTTP server.

Examples:
  # Check health
  hubctl health

  # Check health on a different server
  hubctl health --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func newClient() *client.Client {
	return client.New(serverURL)
}

// requestContext bounds a single CLI request.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 30*time.Second)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	health, err := newClient().Health(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, health)
	}

	fmt.Fprintf(out, "Server Status: %s\n", health.Status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	if health.ActiveProject != "" {
		fmt.Fprintf(out, "Active Project: %s\n", health.ActiveProject)
	}
	if health.Switching {
		fmt.Fprintf(out, "Switch in progress\n")
	}
	return nil
}
