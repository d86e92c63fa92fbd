package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tragoedia0722/partition/pkg/partition"
	"github.com/tragoedia0722/partition/pkg/repository"
	"github.com/tragoedia0722/partition/pkg/validator"
)

var errIncomplete = errors.New("verification failed")

func newVerifyCmd() *cobra.Command {
	var deep bool

	cmd := &cobra.Command{
		Use:   "verify SOURCE DEST",
		Short: "Check that DEST holds every file of SOURCE",
		Long: `Check that DEST holds every file of SOURCE.

The most recent catalog entry for DEST is used when available, so skipped
files are known. Otherwise DEST is scanned: top-level .zip files are taken
as archives and every other file as an uncompressed copy.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], args[1], deep)
		},
	}

	cmd.Flags().BoolVar(&deep, "deep", false, "Decompress every entry instead of trusting archive headers")
	return cmd
}

func runVerify(cmd *cobra.Command, source, destination string, deep bool) error {
	logger := newLogger()
	ctx := cmd.Context()

	result, err := loadResult(cmd, destination)
	if err != nil {
		return err
	}

	dst, err := filepath.Abs(destination)
	if err != nil {
		return err
	}

	report, err := validator.NewValidator(source).
		WithExclude(dst).
		WithDeepCheck(deep).
		WithLogger(logger.Named("verify")).
		Validate(ctx, result)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "checked %d file(s), %d byte(s)\n", report.CheckedFiles, report.CheckedBytes)
	for _, p := range report.Missing {
		fmt.Fprintln(out, "missing:   ", p)
	}
	for _, p := range report.Mismatched {
		fmt.Fprintln(out, "mismatched:", p)
	}
	for _, p := range report.Unexpected {
		fmt.Fprintln(out, "unexpected:", p)
	}
	for _, d := range report.ErrorDetails {
		fmt.Fprintln(out, "error:     ", d)
	}

	if !report.IsComplete {
		return errIncomplete
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func loadResult(cmd *cobra.Command, destination string) (*partition.Result, error) {
	logger := newLogger()

	repo, err := openCatalog(logger)
	if err != nil {
		return nil, err
	}
	if repo != nil {
		defer repo.Close()

		rec, err := repo.LatestFor(cmd.Context(), destination)
		switch {
		case err == nil:
			logger.Info("using catalog entry", "job", rec.ID)
			return rec.PartitionResult()
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	return validator.ResultFromDestination(destination)
}
