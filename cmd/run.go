package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/skiptrace/internal/job"
	"github.com/sells-group/skiptrace/internal/model"
	"github.com/sells-group/skiptrace/internal/sheet"
)

var (
	runInput  string
	runOutput string
	runLimit  int
	runQuiet  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a local CSV or XLSX file",
	Long: `Runs the enrichment engine over a local spreadsheet and writes the
enriched CSV without touching the job store.

Examples:
  skiptrace run --input owners.xlsx
  skiptrace run --input owners.csv --output enriched.csv --limit 5`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := os.ReadFile(runInput)
		if err != nil {
			return eris.Wrapf(err, "run: read %s", runInput)
		}
		records, err := sheet.Parse(runInput, data)
		if err != nil {
			return eris.Wrap(err, "run: parse input")
		}

		env, err := initEnrich(cfg, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		progress := newProgressControl(runQuiet)
		engine, err := env.newEngine(progress)
		if err != nil {
			return err
		}

		start := time.Now()
		progress.start()
		out, updated := job.EnrichRecords(cmd.Context(), engine, env.table, "", records, runLimit)
		progress.stop()

		encoded, err := sheet.WriteCSV(out)
		if err != nil {
			return eris.Wrap(err, "run: encode output")
		}
		output := runOutput
		if output == "" {
			output = defaultOutput(runInput)
		}
		if err := os.WriteFile(output, encoded, 0o644); err != nil {
			return eris.Wrapf(err, "run: write %s", output)
		}

		zap.L().Info("run complete",
			zap.String("output", output),
			zap.Int("rows_updated", updated),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

// defaultOutput turns owners.xlsx into owners.enriched.csv.
func defaultOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".enriched.csv"
}

// progressControl shows per-row progress on a terminal spinner. It never
// cancels; interrupting the command cancels the context instead.
type progressControl struct {
	s *spinner.Spinner
}

func newProgressControl(quiet bool) *progressControl {
	if quiet {
		return &progressControl{}
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " starting"
	return &progressControl{s: s}
}

func (p *progressControl) start() {
	if p.s != nil {
		p.s.Start()
	}
}

func (p *progressControl) stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

func (p *progressControl) IsCancelled(ctx context.Context, _ string) bool {
	return ctx.Err() != nil
}

func (p *progressControl) ReportProgress(_ context.Context, _ string, pr model.Progress) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" %d/%d rows, %d requests", pr.RowsProcessed, pr.TotalRows, pr.RequestCount)
	p.s.Unlock()
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "CSV or XLSX file to enrich (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output CSV path (default <input>.enriched.csv)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max data rows to process (0 = all)")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "disable the progress spinner")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
