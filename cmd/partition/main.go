package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/tragoedia0722/partition/internal/logging"
	"github.com/tragoedia0722/partition/pkg/repository"
)

const version = "0.1.0"

var (
	logLevel    string
	catalogPath string
	noCatalog   bool
	quiet       bool
	rootCmd     *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:           "partition",
		Short:         "Split directory trees into size-bounded ZIP archives",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); defaults to $"+logging.EnvLogLevel)
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", repository.DefaultPath, "Job catalog directory")
	rootCmd.PersistentFlags().BoolVar(&noCatalog, "no-catalog", false, "Do not read or write the job catalog")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide progress bars")

	rootCmd.AddCommand(newSplitCmd(), newVerifyCmd(), newExtractCmd(), newHistoryCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newLogger() hclog.Logger {
	return logging.NewLogger("partition", logLevel, os.Stderr)
}

// openCatalog returns nil when the catalog is disabled.
func openCatalog(logger hclog.Logger) (*repository.Repository, error) {
	if noCatalog {
		return nil, nil
	}

	repo, err := repository.NewRepository(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", catalogPath, err)
	}
	logger.Debug("catalog opened", "path", repo.Path())
	return repo, nil
}
