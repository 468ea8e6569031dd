package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/colorgan/internal/journal"
	"github.com/born-ml/colorgan/internal/storage"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [RUN-ID]",
		Short: "List training runs, or the per-epoch losses of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  HistoryHandler,
	}
	cmd.Flags().String("output", "", "Output directory holding the run journal")
	return cmd
}

// HistoryHandler runs the history command.
func HistoryHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	dir, ok := storage.LocalPath(cfg.OutputDir)
	if !ok {
		return fmt.Errorf("run journal is only kept for local output directories, not %s", cfg.OutputDir)
	}
	path := filepath.Join(dir, journalFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cmd.Println("no training runs recorded")
		return nil
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	if len(args) == 0 {
		runs, err := j.Runs(cmd.Context())
		if err != nil {
			return err
		}
		writeRuns(cmd.OutOrStdout(), runs)
		return nil
	}

	steps, err := j.Steps(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	writeSummaries(cmd.OutOrStdout(), journal.Summarize(steps))
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func writeRuns(w io.Writer, runs []journal.Run) {
	var data [][]string
	for _, r := range runs {
		from := "-"
		if r.Epoch != 0 || r.Batch != 0 {
			from = fmt.Sprintf("e%d b%d", r.Epoch, r.Batch)
		}
		data = append(data, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			from,
			strconv.Itoa(r.Steps),
		})
	}

	table := newTable(w, []string{"ID", "STARTED", "RESUMED FROM", "STEPS"})
	table.AppendBulk(data)
	table.Render()
}

func writeSummaries(w io.Writer, sums []journal.Summary) {
	var data [][]string
	for _, s := range sums {
		data = append(data, []string{
			strconv.Itoa(s.Epoch),
			strconv.Itoa(s.Batches),
			fmt.Sprintf("%.4f ± %.4f", s.GenMean, s.GenStd),
			fmt.Sprintf("%.4f ± %.4f", s.DiscMean, s.DiscStd),
			fmt.Sprintf("%.4f", s.MSEMean),
			fmt.Sprintf("%.4f", s.GPMean),
		})
	}

	table := newTable(w, []string{"EPOCH", "BATCHES", "GENERATOR", "DISCRIMINATOR", "MSE", "GP"})
	table.AppendBulk(data)
	table.Render()
}
