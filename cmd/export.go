package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/engagement-cli/internal/export"
	"github.com/sells-group/engagement-cli/internal/store"
)

// exportPageSize is how many records each store query fetches.
const exportPageSize = 500

var (
	exportFilter filterFlags
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored records to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := export.ParseFormat(exportOut); err != nil {
			return err
		}
		f, err := exportFilter.filter(time.Local)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := listAll(ctx, st, f)
		if err != nil {
			return err
		}
		if err := export.WriteFile(exportOut, recs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(recs), exportOut)
		return nil
	},
}

func init() {
	addFilterFlags(exportCmd, &exportFilter, false)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "engagement.xlsx", "output file (.csv or .xlsx)")
	rootCmd.AddCommand(exportCmd)
}

// listAll pages through every record matching f.
func listAll(ctx context.Context, st store.Store, f store.RecordFilter) ([]store.StoredRecord, error) {
	f.Limit = exportPageSize
	f.Offset = 0

	var out []store.StoredRecord
	for {
		page, err := st.ListRecords(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < f.Limit {
			return out, nil
		}
		f.Offset += len(page)
	}
}
