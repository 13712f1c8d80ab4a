package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sameday-cli/internal/report"
	"github.com/KaramelBytes/sameday-cli/internal/schema"
	"github.com/KaramelBytes/sameday-cli/internal/utils"
)

var (
	anaDate       string
	anaJSON       bool
	anaOutputPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Compare a date with the same calendar day in every recorded year",
	Long: `Compare a date's mean temperature with every historical occurrence of the
same month and day. The date defaults to the latest date in the table.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		sess := newSession(nil)
		ds, err := loadDataset(sess, path)
		if err != nil {
			return err
		}
		first, last, ok := ds.Period()
		if !ok {
			return fmt.Errorf("%s: no observations survived normalization", ds.Source)
		}
		out := cmd.OutOrStdout()
		if !anaJSON {
			fmt.Fprintf(out, "📅 Data period: %s ~ %s\n", first, last)
		}

		date := last
		if anaDate != "" {
			d, err := schema.ParseDate(anaDate)
			if err != nil {
				return err
			}
			date = d
		}
		res, ok, err := sess.AnalyzeDataset(ds, date)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(out, "⚠ No observation recorded for %s\n", date)
			return nil
		}

		rep := report.Build(res, ds.Table, reportOptions())
		var body []byte
		if anaJSON {
			body, err = rep.JSON()
			if err != nil {
				return err
			}
		} else {
			body = []byte(rep.Markdown())
		}
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, body); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(out, string(body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaDate, "date", "d", "", "date to analyze, e.g. 2025-08-15 (default: latest date in the table)")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit the report as JSON")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
}
