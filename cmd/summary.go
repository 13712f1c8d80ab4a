package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sameday-cli/internal/analysis"
	"github.com/KaramelBytes/sameday-cli/internal/utils"
)

var (
	sumOutDir     string
	sumSampleRows int
	sumOutliers   bool
	sumOutlierThr float64
	sumNoMonths   bool
	sumQuiet      bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary [files...]",
	Short: "Profile one or more temperature tables",
	Long: `Profile temperature tables: period and coverage, dropped rows, per-column
statistics with robust outliers, monthly averages and column correlations.
Arguments may be glob patterns; with none, the configured data file is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			files = []string{""}
		}

		opt := analysis.DefaultOptions()
		if sumSampleRows > 0 {
			opt.SampleRows = sumSampleRows
		}
		opt.Outliers = sumOutliers
		if sumOutlierThr > 0 {
			opt.OutlierThreshold = sumOutlierThr
		}
		opt.ByMonth = !sumNoMonths

		if sumOutDir != "" {
			if err := os.MkdirAll(sumOutDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		out := cmd.OutOrStdout()
		sess := newSession(nil)
		total := len(files)
		for i, path := range files {
			if total > 1 && !sumQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			ds, err := loadDataset(sess, path)
			if err != nil {
				return err
			}
			md := analysis.Profile(ds.Table, opt).Markdown()
			if sumOutDir == "" {
				fmt.Fprintln(out, md)
				continue
			}
			base := strings.TrimSuffix(ds.Source, filepath.Ext(ds.Source))
			outFile := filepath.Join(sumOutDir, base+".summary.md")
			if err := utils.SafeWriteFile(outFile, []byte(md)); err != nil {
				return err
			}
			if !sumQuiet {
				fmt.Fprintf(out, "✓ Wrote summary to %s\n", outFile)
			}
		}
		return nil
	},
}

// expandInputs resolves glob patterns, keeping literal paths that exist,
// and returns a sorted, de-duplicated list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("no input files matched %q", arg)
			}
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&sumOutDir, "out-dir", "", "write <name>.summary.md files to this directory instead of stdout")
	summaryCmd.Flags().IntVar(&sumSampleRows, "sample-rows", 5, "number of sample rows to include")
	summaryCmd.Flags().BoolVar(&sumOutliers, "outliers", true, "compute robust outlier counts (MAD)")
	summaryCmd.Flags().Float64Var(&sumOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	summaryCmd.Flags().BoolVar(&sumNoMonths, "no-months", false, "omit the monthly summary")
	summaryCmd.Flags().BoolVarP(&sumQuiet, "quiet", "q", false, "suppress progress output")
}
