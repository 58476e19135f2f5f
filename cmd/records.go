package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/store"
)

// dateLayout is the --from/--to flag format.
const dateLayout = "2006-01-02"

// filterFlags are the record selection flags shared by records and export.
type filterFlags struct {
	From     string
	To       string
	Platform string
	Limit    int
	Offset   int
}

func addFilterFlags(cmd *cobra.Command, f *filterFlags, paged bool) {
	cmd.Flags().StringVar(&f.From, "from", "", "first capture date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last capture date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.Platform, "platform", "", "youtube, tiktok or facebook")
	if paged {
		cmd.Flags().IntVar(&f.Limit, "limit", store.DefaultListLimit, "max records to return")
		cmd.Flags().IntVar(&f.Offset, "offset", 0, "records to skip")
	}
}

// filter converts flag values to a RecordFilter. Dates are taken in loc;
// the --to day is included by ending the range at the next midnight.
func (f filterFlags) filter(loc *time.Location) (store.RecordFilter, error) {
	out := store.RecordFilter{Limit: f.Limit, Offset: f.Offset}
	if f.From != "" {
		t, err := time.ParseInLocation(dateLayout, f.From, loc)
		if err != nil {
			return out, eris.Wrapf(err, "invalid --from %q", f.From)
		}
		out.From = t
	}
	if f.To != "" {
		t, err := time.ParseInLocation(dateLayout, f.To, loc)
		if err != nil {
			return out, eris.Wrapf(err, "invalid --to %q", f.To)
		}
		out.To = t.AddDate(0, 0, 1)
	}
	if !out.From.IsZero() && !out.To.IsZero() && !out.From.Before(out.To) {
		return out, eris.Errorf("--from %s is after --to %s", f.From, f.To)
	}
	if f.Platform != "" {
		p := model.Platform(strings.ToLower(f.Platform))
		if !p.Valid() {
			return out, eris.Errorf("unknown platform %q", f.Platform)
		}
		out.Platform = p
	}
	return out, nil
}

// openStore validates the store settings and opens it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	return initStore(ctx)
}

var recordsFilter filterFlags

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and manage stored records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := recordsFilter.filter(time.Local)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRecords(ctx, f)
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), recs)
		return nil
	},
}

var recordsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := recordsFilter.filter(time.Local)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.CountRecords(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one stored record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rec)
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteRecord(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	addFilterFlags(recordsListCmd, &recordsFilter, true)
	addFilterFlags(recordsCountCmd, &recordsFilter, false)
	recordsCmd.AddCommand(recordsListCmd, recordsCountCmd, recordsGetCmd, recordsDeleteCmd)
	rootCmd.AddCommand(recordsCmd)
}

func printRecords(w io.Writer, recs []store.StoredRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAPTURED\tPLATFORM\tVIEWS\tLIKES\tCOMMENTS\tSHARES\tURL\tERROR")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CapturedAt.Local().Format("2006-01-02 15:04"),
			r.Record.Platform,
			countOrDash(r.Record.Views),
			countOrDash(r.Record.Likes),
			countOrDash(r.Record.Comments),
			countOrDash(r.Record.Shares),
			r.Record.URL,
			r.Record.ErrorKind,
		)
	}
	_ = tw.Flush()
}

func countOrDash(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
