package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/engagement-cli/internal/export"
	"github.com/sells-group/engagement-cli/internal/pipeline"
	"github.com/sells-group/engagement-cli/internal/store"
)

var (
	batchFile   string
	batchOut    string
	batchVision bool
	batchSave   saveOptions
)

var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Extract engagement metadata for a list of URLs",
	Long:  "Processes URLs one at a time, pausing batch.request_delay between them. URLs come from arguments and/or --file (one per line, # comments allowed). A failing URL yields a record with its error set and never stops the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls := append([]string(nil), args...)
		if batchFile != "" {
			fromFile, err := readURLFile(batchFile)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return eris.New("no URLs given: pass them as arguments or with --file")
		}
		if cfg.Batch.MaxURLs > 0 && len(urls) > cfg.Batch.MaxURLs {
			return eris.Errorf("batch of %d URLs exceeds batch.max_urls (%d)", len(urls), cfg.Batch.MaxURLs)
		}

		if batchVision {
			cfg.Vision.Enabled = true
		}

		env, err := initPipeline(ctx, "batch", batchSave.Save)
		if err != nil {
			return err
		}
		defer env.Close()

		results := env.Pipeline.Batch(ctx, urls)

		recs, err := saveResults(ctx, env.Store, batchSave, results)
		if err != nil {
			return err
		}

		printBatchSummary(cmd.ErrOrStderr(), results)

		if batchOut != "" {
			if err := export.WriteFile(batchOut, derefRecords(recs)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records to %s\n", len(recs), batchOut)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), results)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file with one URL per line")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "write a .csv or .xlsx report instead of JSON")
	batchCmd.Flags().BoolVar(&batchVision, "vision", false, "cross-check counts against a screenshot read by the vision model")
	addSaveFlags(batchCmd, &batchSave)
	rootCmd.AddCommand(batchCmd)
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open url file %s", path)
	}
	defer f.Close() //nolint:errcheck

	urls, err := readURLs(f)
	if err != nil {
		return nil, eris.Wrapf(err, "read url file %s", path)
	}
	return urls, nil
}

// readURLs returns the non-blank, non-comment lines of r.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

func printBatchSummary(w io.Writer, results []pipeline.Result) {
	failed := 0
	for _, r := range results {
		if r.Record.Failed() {
			failed++
			fmt.Fprintf(w, "FAIL %s: %s\n", r.Record.URL, r.Record.Error)
		}
	}
	fmt.Fprintf(w, "processed %d URLs: %d ok, %d failed\n", len(results), len(results)-failed, failed)
}

func derefRecords(recs []*store.StoredRecord) []store.StoredRecord {
	out := make([]store.StoredRecord, len(recs))
	for i, r := range recs {
		out[i] = *r
	}
	return out
}
