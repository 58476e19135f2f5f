package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/engagement-cli/internal/classify"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <url...>",
	Short: "Show the platform, layout variant and canonical URL for each URL",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		printClassification(cmd.OutOrStdout(), args)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func printClassification(w io.Writer, urls []string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tPLATFORM\tVARIANT\tCONTENT ID\tCANONICAL URL")
	for _, u := range urls {
		ref, err := classify.Classify(u)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", u, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u, ref.Platform, ref.Variant, ref.ContentID, ref.CanonicalURL)
	}
	_ = tw.Flush()
}
