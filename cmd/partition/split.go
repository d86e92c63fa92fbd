package main

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"github.com/tragoedia0722/partition/pkg/partition"
)

type splitOptions struct {
	strategy   string
	maxSize    string
	limitKind  string
	ratio      float64
	oversized  string
	singleName string
	level      int
	cleanup    bool
}

func newSplitCmd() *cobra.Command {
	defaults := partition.DefaultConfig()
	opts := &splitOptions{
		strategy:   defaults.Strategy.String(),
		maxSize:    datasize.ByteSize(defaults.MaxSizeBytes).String(),
		limitKind:  defaults.SizeLimitKind.String(),
		ratio:      defaults.CompressionRatio,
		oversized:  defaults.OversizedPolicy.String(),
		singleName: defaults.SingleArchiveName,
		level:      defaults.CompressionLevel,
	}

	cmd := &cobra.Command{
		Use:   "split SOURCE DEST",
		Short: "Pack SOURCE into size-bounded archives under DEST",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.strategy, "strategy", opts.strategy, "split or single")
	f.StringVar(&opts.maxSize, "max-size", opts.maxSize, "Archive size limit, e.g. 25MB or 2GB")
	f.StringVar(&opts.limitKind, "limit", opts.limitKind, "What the limit applies to: uncompressed or compressed")
	f.Float64Var(&opts.ratio, "ratio", opts.ratio, "Expected compressed/raw ratio for --limit compressed")
	f.StringVar(&opts.oversized, "oversized", opts.oversized, "Files above the limit: fail, isolate, skip or copy")
	f.StringVar(&opts.singleName, "name", opts.singleName, "Archive name for --strategy single")
	f.IntVar(&opts.level, "level", opts.level, "DEFLATE level 1 to 9; 0 or -1 for the default, -2 Huffman only, -3 store")
	f.BoolVar(&opts.cleanup, "cleanup-on-failure", false, "Remove partial output when the job fails")

	return cmd
}

func (o *splitOptions) config() (partition.Config, error) {
	cfg := partition.DefaultConfig()

	var err error
	if cfg.Strategy, err = partition.ParseStrategy(o.strategy); err != nil {
		return cfg, err
	}
	if cfg.SizeLimitKind, err = partition.ParseSizeLimitKind(o.limitKind); err != nil {
		return cfg, err
	}
	if cfg.OversizedPolicy, err = partition.ParseOversizedPolicy(o.oversized); err != nil {
		return cfg, err
	}

	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(o.maxSize)); err != nil {
		return cfg, &partition.ConfigError{Field: "MaxSizeBytes", Value: o.maxSize, Reason: err.Error()}
	}

	cfg.MaxSizeBytes = int64(size.Bytes())
	cfg.CompressionRatio = o.ratio
	cfg.SingleArchiveName = o.singleName
	cfg.CompressionLevel = o.level
	cfg.CleanupOnFailure = o.cleanup

	return cfg, cfg.Validate()
}

func runSplit(cmd *cobra.Command, opts *splitOptions, source, destination string) error {
	logger := newLogger()

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	repo, err := openCatalog(logger)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	bar, onProgress := percentBar("packing")
	result, err := partition.New(source, destination, cfg).
		WithLogger(logger.Named("split")).
		WithProgress(onProgress).
		Run(cmd.Context())
	finishBar(bar)

	if err != nil {
		if result != nil && len(result.Archives) > 0 {
			fmt.Fprintf(os.Stderr, "%d archive(s) left in %s\n", len(result.Archives), destination)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d file(s), %s in %d archive(s) (limit %s) in %s\n",
		result.TotalFiles,
		datasize.ByteSize(result.BytesProcessed).HR(),
		len(result.Archives),
		datasize.ByteSize(result.Threshold).HR(),
		result.Elapsed.Round(time.Millisecond))
	for _, a := range result.Archives {
		fmt.Fprintln(out, "  ", a)
	}
	for _, sh := range result.SpecialHandling {
		fmt.Fprintf(out, "warning: %s: %s\n", sh.RelPath, sh.Reason)
	}

	if repo != nil {
		rec, err := repo.RecordJob(cmd.Context(), source, destination, result)
		if err != nil {
			return fmt.Errorf("record job: %w", err)
		}
		fmt.Fprintf(out, "recorded as job %s\n", rec.ID)
	}

	return nil
}
