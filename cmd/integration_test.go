package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/sameday-cli/internal/schema"
)

const kmaMetadata = "[검색조건]\n자료구분 : 일\n자료형태 : 기본\n지점번호 : 108\n지점명 : 서울\n시작일 : 20000101\n종료일 : 20111231\n"

// writeKMA writes a KMA-style export with Aug 14 and Aug 15 for each year.
// The Aug 15 mean rises by one degree per year.
func writeKMA(t *testing.T, dir, name string, first, last int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(kmaMetadata)
	b.WriteString("날짜,지점,평균기온(℃),최저기온(℃),최고기온(℃)\n")
	for y := first; y <= last; y++ {
		m := 25 + float64(y-first)
		fmt.Fprintf(&b, "\t%d-08-14,108,%.1f,%.1f,%.1f\n", y, m-1, m-5, m+3)
		fmt.Fprintf(&b, "\t%d-08-15,108,%.1f,%.1f,%.1f\n", y, m, m-4, m+4)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return p
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestCLI_AnalyzeMarkdown(t *testing.T) {
	home := isolate(t)
	path := writeKMA(t, home, "ta.csv", 2000, 2011)

	out := runCmd(t, "analyze", "--file", path, "--date", "2011-08-15")
	for _, want := range []string{
		"📅 Data period: 2000-08-14 ~ 2011-08-15",
		"[SAME-DAY SUMMARY]",
		"Mean temperature: 36.0℃",
		"Same-day average: 30.5℃ over 12 years",
		"Rank: 1 of 12",
		"| 2011 * | 36.0 |",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_AnalyzeDefaultsToLatestDate(t *testing.T) {
	home := isolate(t)
	path := writeKMA(t, home, "ta.csv", 2000, 2003)

	out := runCmd(t, "analyze", path)
	if !strings.Contains(out, "Date: 2003-08-15") {
		t.Fatalf("expected latest date to be analyzed:\n%s", out)
	}
	if !strings.Contains(out, "trend curve omitted") {
		t.Fatalf("expected no trend for 4 years:\n%s", out)
	}
}

func TestCLI_AnalyzeJSONToFile(t *testing.T) {
	home := isolate(t)
	path := writeKMA(t, home, "ta.csv", 2000, 2009)
	outPath := filepath.Join(home, "report.json")

	out := runCmd(t, "analyze", "-f", path, "-d", "2005/08/14", "--json", "-o", outPath)
	if !strings.Contains(out, "✓ Wrote analysis to") {
		t.Fatalf("unexpected output: %s", out)
	}
	b, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Target     schema.Date `json:"target"`
		CohortSize int         `json:"cohort_size"`
		HasTrend   bool        `json:"has_trend"`
		Histogram  []struct {
			Count int `json:"count"`
		} `json:"histogram"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Target.String() != "2005-08-14" || rep.CohortSize != 10 || !rep.HasTrend {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Histogram) != 30 {
		t.Fatalf("histogram bins = %d, want 30", len(rep.Histogram))
	}
}

func TestCLI_AnalyzeMissingDate(t *testing.T) {
	home := isolate(t)
	path := writeKMA(t, home, "ta.csv", 2000, 2005)

	for _, d := range []string{"2003-08-16", "1990-08-15"} {
		out := runCmd(t, "analyze", "-f", path, "-d", d)
		if !strings.Contains(out, "⚠ No observation recorded for") {
			t.Fatalf("expected no-data warning for %s:\n%s", d, out)
		}
	}
	if _, err := execute(t, "analyze", "-f", path, "-d", "not-a-date"); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestCLI_WrongHeaderOffsetReportsColumns(t *testing.T) {
	home := isolate(t)
	path := writeKMA(t, home, "ta.csv", 2000, 2002)

	_, err := execute(t, "analyze", "-f", path, "--header-skip", "5")
	if err == nil {
		t.Fatal("expected schema error")
	}
	var buf bytes.Buffer
	printError(&buf, err)
	msg := buf.String()
	if !strings.Contains(msg, "Columns found: 시작일 : 20000101") || !strings.Contains(msg, "Hint:") {
		t.Fatalf("missing diagnostics:\n%s", msg)
	}
}

func TestCLI_NoDataFile(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "analyze"); err == nil || !strings.Contains(err.Error(), "no data file") {
		t.Fatalf("expected no data file error, got %v", err)
	}
}

func TestCLI_ConfigSetShowAndUse(t *testing.T) {
	home := isolate(t)
	path := writeKMA(t, home, "ta.csv", 2000, 2007)

	runCmd(t, "config", "set", "data_file", path)
	runCmd(t, "config", "set", "histogram_bins", "12")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "data_file: "+path) || !strings.Contains(out, "histogram_bins: 12") {
		t.Fatalf("config show missing values:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, ".sameday", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}

	out = runCmd(t, "analyze", "--date", "2007-08-15")
	if !strings.Contains(out, "Rank: 1 of 8") {
		t.Fatalf("configured data file not used:\n%s", out)
	}

	if _, err := execute(t, "config", "set", "trend_span", "2"); err == nil {
		t.Fatal("expected validation error for trend_span")
	}
	if _, err := execute(t, "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCLI_ConfigSetKeepsEnvOutOfFile(t *testing.T) {
	home := isolate(t)
	t.Chdir(home)
	t.Setenv("SAMEDAY_HEADER_SKIP", "9")

	runCmd(t, "config", "set", "log_level", "debug")
	b, err := os.ReadFile(filepath.Join(home, ".sameday", "config.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(b), "header_skip: 7") || !strings.Contains(string(b), "log_level: debug") {
		t.Fatalf("unexpected saved config:\n%s", b)
	}

	if _, err := execute(t, "config", "set", "primary_encoding", "utf-9"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	if _, err := execute(t, "config", "set", "fallback_encoding", "euc-kr"); err != nil {
		t.Fatalf("valid encoding rejected: %v", err)
	}
}

func TestCLI_SummaryBatch(t *testing.T) {
	home := isolate(t)
	writeKMA(t, home, "a.csv", 2000, 2004)
	writeKMA(t, home, "b.csv", 2001, 2003)
	outDir := filepath.Join(home, "summaries")

	out := runCmd(t, "summary", filepath.Join(home, "*.csv"), "--out-dir", outDir)
	if !strings.Contains(out, "[1/2] Processing a.csv...") || !strings.Contains(out, "[2/2] Processing b.csv...") {
		t.Fatalf("missing progress:\n%s", out)
	}
	b, err := os.ReadFile(filepath.Join(outDir, "b.summary.md"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	md := string(b)
	if !strings.Contains(md, "[DATASET SUMMARY]") || !strings.Contains(md, "Period: 2001-08-14 ~ 2003-08-15") {
		t.Fatalf("unexpected summary:\n%s", md)
	}

	out = runCmd(t, "summary", "-f", filepath.Join(home, "a.csv"))
	if !strings.Contains(out, "Rows: 10 read, 10 kept") {
		t.Fatalf("unexpected stdout summary:\n%s", out)
	}
}
