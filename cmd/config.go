package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sameday-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set sameday configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := settings()
		out := cmd.OutOrStdout()
		for _, key := range cfgpkg.Keys {
			fmt.Fprintf(out, "%s: %s\n", key, configValue(c, key))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Start from the file alone so flag and env overrides are not persisted.
		c, err := cfgpkg.LoadFile(cfgFile)
		if err != nil {
			return err
		}
		switch key {
		case "data_file":
			c.DataFile = val
		case "header_skip":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for header_skip: %w", err)
			}
			c.HeaderSkip = i
		case "primary_encoding":
			c.PrimaryEncoding = val
		case "fallback_encoding":
			c.FallbackEncoding = val
		case "delimiter":
			if val == "tab" || val == `\t` {
				val = "\t"
			}
			c.Delimiter = val
		case "trend_min_years":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for trend_min_years: %w", err)
			}
			c.TrendMinYears = i
		case "trend_span":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("invalid float for trend_span: %w", err)
			}
			c.TrendSpan = f
		case "trend_iterations":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for trend_iterations: %w", err)
			}
			c.TrendIterations = i
		case "histogram_bins":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for histogram_bins: %w", err)
			}
			c.HistogramBins = i
		case "cache_entries":
			i, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("invalid int for cache_entries: %w", err)
			}
			c.CacheEntries = i
		case "http_addr":
			c.HTTPAddr = val
		case "log_level":
			switch val {
			case "debug", "info", "warn", "error":
				c.LogLevel = val
			default:
				return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
			}
		case "log_format":
			switch val {
			case "text", "json":
				c.LogFormat = val
			default:
				return fmt.Errorf("invalid log_format: %s (use text or json)", val)
			}
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = c
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func configValue(c *cfgpkg.Global, key string) string {
	switch key {
	case "data_file":
		return c.DataFile
	case "header_skip":
		return strconv.Itoa(c.HeaderSkip)
	case "primary_encoding":
		return c.PrimaryEncoding
	case "fallback_encoding":
		return c.FallbackEncoding
	case "delimiter":
		if c.Delimiter == "" {
			return "(auto)"
		}
		return strconv.Quote(c.Delimiter)
	case "trend_min_years":
		return strconv.Itoa(c.TrendMinYears)
	case "trend_span":
		return strconv.FormatFloat(c.TrendSpan, 'g', -1, 64)
	case "trend_iterations":
		return strconv.Itoa(c.TrendIterations)
	case "histogram_bins":
		return strconv.Itoa(c.HistogramBins)
	case "cache_entries":
		return strconv.Itoa(c.CacheEntries)
	case "http_addr":
		return c.HTTPAddr
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	}
	return ""
}
