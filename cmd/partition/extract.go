package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tragoedia0722/partition/pkg/extractor"
)

func newExtractCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "extract DEST ARCHIVE...",
		Short: "Restore archives into DEST",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			bar, onProgress := byteBar("extracting")
			err := extractor.NewExtractor(args[1:], args[0]).
				WithLogger(logger.Named("extract")).
				WithProgress(onProgress).
				Extract(cmd.Context(), overwrite)
			finishBar(bar)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "restored %d archive(s) into %s\n", len(args)-1, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace files that already exist")
	return cmd
}
