package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"github.com/tragoedia0722/partition/pkg/repository"
)

func newHistoryCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "history [JOB-ID]",
		Short: "List recorded jobs, or show one job and its archives",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noCatalog {
				return errors.New("history needs the catalog")
			}

			repo, err := openCatalog(newLogger())
			if err != nil {
				return err
			}
			defer repo.Close()

			if len(args) == 1 {
				return showJob(cmd, repo, args[0], verify)
			}
			return listJobs(cmd, repo)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Re-hash archives and compare with the recorded CIDs")
	return cmd
}

func listJobs(cmd *cobra.Command, repo *repository.Repository) error {
	jobs, err := repo.Jobs(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tFILES\tSIZE\tARCHIVES\tDESTINATION")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\n",
			j.ID,
			j.CreatedAt.Format("2006-01-02 15:04:05"),
			j.TotalFiles,
			datasize.ByteSize(j.TotalBytes).HR(),
			len(j.Archives),
			j.Destination)
	}
	return w.Flush()
}

func showJob(cmd *cobra.Command, repo *repository.Repository, id string, verify bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	job, err := repo.Job(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "job %s: %s -> %s (%s, limit %s)\n",
		job.ID, job.Source, job.Destination, job.Strategy, datasize.ByteSize(job.Threshold).HR())

	failed := 0
	for _, a := range job.Archives {
		m, err := repo.Manifest(ctx, a.ManifestCID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s  %d entries  %s raw  %s\n", a.Name, len(m.Entries), datasize.ByteSize(m.RawBytes()).HR(), a.ContentCID)

		if verify {
			if err := repository.VerifyArchive(a); err != nil {
				fmt.Fprintln(out, "    FAILED:", err)
				failed++
			}
		}
	}
	for _, sh := range job.SpecialHandling {
		fmt.Fprintf(out, "  [%s] %s: %s\n", sh.Policy, sh.RelPath, sh.Reason)
	}

	if failed > 0 {
		return fmt.Errorf("%d archive(s) changed since the job ran", failed)
	}
	return nil
}
