package main

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/pipeline"
	"github.com/sells-group/engagement-cli/internal/store"
)

// saveOptions controls whether and how finished records are persisted.
type saveOptions struct {
	Save    bool
	Creator string
	Account string
}

var (
	extractVision bool
	extractSave   saveOptions
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract engagement metadata from one video URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if extractVision {
			cfg.Vision.Enabled = true
		}

		env, err := initPipeline(ctx, "extract", extractSave.Save)
		if err != nil {
			return err
		}
		defer env.Close()

		res := env.Pipeline.Run(ctx, args[0])

		if _, err := saveResults(ctx, env.Store, extractSave, []pipeline.Result{res}); err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	addSaveFlags(extractCmd, &extractSave)
	extractCmd.Flags().BoolVar(&extractVision, "vision", false, "cross-check counts against a screenshot read by the vision model")
	rootCmd.AddCommand(extractCmd)
}

func addSaveFlags(cmd *cobra.Command, opts *saveOptions) {
	cmd.Flags().BoolVar(&opts.Save, "save", false, "persist records to the configured store")
	cmd.Flags().StringVar(&opts.Creator, "creator", "", "creator name stored with each record")
	cmd.Flags().StringVar(&opts.Account, "account", "", "account name stored with each record")
}

// toStored copies pipeline results into stored records annotated with opts.
func toStored(opts saveOptions, results []pipeline.Result, now time.Time) []*store.StoredRecord {
	out := make([]*store.StoredRecord, 0, len(results))
	for _, res := range results {
		sr := store.NewRecord(res.Record, res.Analysis, now)
		sr.CreatorName = opts.Creator
		sr.AccountName = opts.Account
		out = append(out, sr)
	}
	return out
}

// saveResults persists results when opts.Save is set. st may be nil when
// saving is off.
func saveResults(ctx context.Context, st store.Store, opts saveOptions, results []pipeline.Result) ([]*store.StoredRecord, error) {
	recs := toStored(opts, results, time.Now())
	if !opts.Save || len(recs) == 0 {
		return recs, nil
	}
	if st == nil {
		return nil, eris.New("save requested without a store")
	}
	if err := st.SaveRecords(ctx, recs); err != nil {
		return nil, eris.Wrap(err, "save records")
	}
	zap.L().Info("records saved", zap.Int("count", len(recs)))
	return recs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
