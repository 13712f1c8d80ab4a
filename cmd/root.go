package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sameday-cli/internal/config"
	"github.com/KaramelBytes/sameday-cli/internal/observability"
	"github.com/KaramelBytes/sameday-cli/internal/report"
	"github.com/KaramelBytes/sameday-cli/internal/schema"
	"github.com/KaramelBytes/sameday-cli/internal/server"
	"github.com/KaramelBytes/sameday-cli/internal/session"
	"github.com/KaramelBytes/sameday-cli/internal/table"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Loader flags (override config if set)
	flagDataFile   string
	flagHeaderSkip int
	flagEncoding   string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sameday",
	Short: "sameday: how does a day's temperature compare with the same day in past years",
	Long: `sameday loads a daily temperature table (KMA export or any CSV with a date and
mean/min/max temperature columns) and compares a chosen date against every
historical occurrence of the same month and day: average, difference, rank and
a smoothed long-term trend.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sameday/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagDataFile, "file", "f", "", "temperature table to load (overrides data_file)")
	rootCmd.PersistentFlags().IntVar(&flagHeaderSkip, "header-skip", 0, "metadata lines before the header row (overrides header_skip)")
	rootCmd.PersistentFlags().StringVar(&flagEncoding, "encoding", "", "primary text encoding (overrides primary_encoding)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Default()
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("file") {
		cfg.DataFile = flagDataFile
	}
	if f.Changed("header-skip") && flagHeaderSkip >= 0 {
		cfg.HeaderSkip = flagHeaderSkip
	}
	if f.Changed("encoding") && flagEncoding != "" {
		cfg.PrimaryEncoding = flagEncoding
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	logger = observability.NewLogger(level, cfg.LogFormat, os.Stderr)
}

// settings returns the effective configuration, never nil.
func settings() *cfgpkg.Global {
	if cfg == nil {
		cfg = cfgpkg.Default()
	}
	return cfg
}

func newSession(m *observability.Metrics) *session.Session {
	c := settings()
	return session.New(session.Options{
		Loader:       c.LoaderOptions(),
		Engine:       c.EngineOptions(),
		CacheEntries: c.CacheEntries,
		Metrics:      m,
		Logger:       logger,
	})
}

func reportOptions() report.Options {
	opt := report.DefaultOptions()
	opt.Bins = settings().HistogramBins
	return opt
}

// loadDataset loads path, or the configured data_file when path is empty.
func loadDataset(sess *session.Session, path string) (*session.Dataset, error) {
	if path == "" {
		path = settings().DataFile
	}
	if path == "" {
		return nil, errors.New("no data file: pass --file or run 'sameday config set data_file <path>'")
	}
	return sess.Load(table.FileSource(path))
}

// printError writes err with diagnostics for structural load failures.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "✗ Error:", err)
	var se *schema.SchemaError
	var de *table.DecodeError
	switch {
	case errors.As(err, &se):
		fmt.Fprintf(w, "  Columns found: %s\n", strings.Join(se.Columns, ", "))
		fmt.Fprintf(w, "  Hint: %s (currently %d)\n", server.HeaderHint, settings().HeaderSkip)
	case errors.As(err, &de):
		fmt.Fprintf(w, "  Hint: set primary_encoding or fallback_encoding to the file's encoding (tried %s)\n", strings.Join(de.Encodings, ", "))
	}
}
