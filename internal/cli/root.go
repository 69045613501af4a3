// Package cli implements insightctl, a terminal front-end over the same
// compliance services the HTTP gateway serves.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/insight-compliance-api/internal/app"
	"github.com/noah-isme/insight-compliance-api/pkg/config"
	"github.com/noah-isme/insight-compliance-api/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "insightctl",
	Short: "Compliance reports for the INSIGHT study",
	Long: `insightctl evaluates participant survey compliance from the terminal.

It reads the same configuration as the API gateway (.env and environment
variables) and talks to the participant table, dispatch logs and survey exports
directly.`,
	SilenceUsage: true,
}

var outputJSON bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print raw JSON instead of tables")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withContainer builds a container without Redis or the export queue, runs fn
// and releases backends afterwards.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := app.New(ctx, cfg, logr, app.Options{})
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck
	return fn(ctx, c)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
