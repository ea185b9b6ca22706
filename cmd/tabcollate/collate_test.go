package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/tabcollate/internal/config"
	"github.com/nao1215/tabcollate/internal/database"
	"github.com/nao1215/tabcollate/internal/driver/drivertest"
	"github.com/nao1215/tabcollate/internal/model"
	"github.com/nao1215/tabcollate/internal/progress"
	"github.com/nao1215/tabcollate/internal/report"
)

const testTarget = "https://stats.example.test/permits"

const testSiteConfig = `
defaults:
  allLabels: ["All"]
sites:
  stats.example.test:
    axes: [Year, State, Status]
    controls:
      Year: "#year"
      State: "#state"
      Status: "#status"
    fixedBreakdown: Status
    busy: ".spinner"
    optionCounts: true
    cookie: "session=abc"
`

func writeSiteConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".tabcollate")
	if err := os.WriteFile(path, []byte(testSiteConfig), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func parseCollate(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	cmd := NewCollateCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return buildConfig(cmd, cmd.Flags().Args())
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := parseCollate(t, "-c", writeSiteConfig(t), testTarget)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if diff := cmp.Diff([]string{testTarget}, cfg.Targets); diff != "" {
			t.Errorf("Targets mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Year", "State", "Status"}, cfg.Axes); diff != "" {
			t.Errorf("axes must default to the site's (-want +got):\n%s", diff)
		}
		if cfg.Concurrency != config.DefaultConcurrency || cfg.Attempts != config.DefaultAttempts {
			t.Errorf("unexpected defaults: concurrency %d, attempts %d", cfg.Concurrency, cfg.Attempts)
		}
		if !cfg.Headless || !cfg.SaveToDB || cfg.Format != config.FormatText {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("flags override", func(t *testing.T) {
		t.Parallel()

		cfg, err := parseCollate(t,
			"-c", writeSiteConfig(t),
			"--axes", "State, Year ,Status",
			"--optimize", "--sample-limit", "3",
			"--revisit-on-mismatch", "2",
			"-n", "1", "--attempts", "5",
			"--retry-delay", "250ms", "-t", "4s",
			"--interaction-delay", "1s",
			"--headless=false", "--remote-browser", "ws://127.0.0.1:9222/devtools/browser/x",
			"-f", "xlsx", "-o", "out/permits.xlsx",
			"--save=false",
			testTarget,
		)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if diff := cmp.Diff([]string{"State", "Year", "Status"}, cfg.Axes); diff != "" {
			t.Errorf("Axes mismatch (-want +got):\n%s", diff)
		}
		if !cfg.Optimize || cfg.SampleLimit != 3 || cfg.RevisitOnMismatch != 2 {
			t.Errorf("traversal flags not applied: %+v", cfg)
		}
		if cfg.Concurrency != 1 || cfg.Attempts != 5 || cfg.RetryDelay != 250*time.Millisecond || cfg.StableTimeout != 4*time.Second {
			t.Errorf("interaction flags not applied: %+v", cfg)
		}
		if cfg.Headless || cfg.RemoteBrowser == "" || cfg.SaveToDB {
			t.Errorf("browser flags not applied: %+v", cfg)
		}
		if cfg.Format != config.FormatXLSX || cfg.ReportFile != "out/permits.xlsx" {
			t.Errorf("output flags not applied: %+v", cfg)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, err := parseCollate(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"), testTarget)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestLayoutFor(t *testing.T) {
	t.Parallel()

	cf, err := config.LoadConfigFile(writeSiteConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	layout := layoutFor(cf.GetSiteConfig(testTarget))
	if layout.Controls["State"] != "#state" || layout.FixedBreakdown != "Status" {
		t.Errorf("unexpected layout: %+v", layout)
	}
	if layout.Table != config.DefaultTableSelector || layout.Busy != ".spinner" || !layout.OptionCounts {
		t.Errorf("unexpected layout: %+v", layout)
	}
	if err := layout.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPlaceholder(t *testing.T) {
	t.Parallel()

	skip := placeholder([]string{"All", " Select... "})
	for label, want := range map[string]bool{
		"All":       true,
		"all":       true,
		"Select...": true,
		"":          true,
		"Allen":     false,
		"TX":        false,
	} {
		if got := skip(label); got != want {
			t.Errorf("placeholder(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestCheckWritable(t *testing.T) {
	t.Parallel()

	if err := checkWritable(""); err != nil {
		t.Errorf("empty path must be accepted: %v", err)
	}

	path := filepath.Join(t.TempDir(), "deep", "report.json")
	if err := checkWritable(path); err != nil {
		t.Fatalf("checkWritable() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected the file to exist: %v", err)
	}

	existing := filepath.Join(t.TempDir(), "keep.txt")
	if err := os.WriteFile(existing, []byte("keep"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := checkWritable(existing); err != nil {
		t.Fatalf("checkWritable() error = %v", err)
	}
	if data, _ := os.ReadFile(existing); string(data) != "keep" {
		t.Error("checkWritable must not truncate an existing file")
	}

	if err := checkWritable(t.TempDir()); err == nil {
		t.Error("a directory must not be writable as a file")
	}
}

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Targets = []string{testTarget}
	cfg.Axes = []string{"Year", "State", "Status"}
	cfg.RetryDelay = time.Millisecond
	cfg.StableTimeout = time.Second
	cfg.Settle = 0
	cfg.Poll = time.Millisecond
	return cfg
}

func testPage() *drivertest.Page {
	return drivertest.New(map[string][]string{
		"Year":   {"2020", "2021"},
		"State":  {"TX", "CA"},
		"Status": {"Granted", "Denied"},
	}, drivertest.Grid(map[string]int64{
		"State=TX,Status=Granted,Year=2020": 10,
		"State=TX,Status=Denied,Year=2020":  5,
		"State=CA,Status=Granted,Year=2020": 7,
		"State=CA,Status=Denied,Year=2020":  3,
		"State=TX,Status=Granted,Year=2021": 8,
		"State=TX,Status=Denied,Year=2021":  4,
		"State=CA,Status=Granted,Year=2021": 6,
		"State=CA,Status=Denied,Year=2021":  2,
	}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	site := config.SiteConfig{FixedBreakdown: "Status", AllLabels: []string{"All"}}
	eng := newEngine(testPage(), testConfig(), site, nil, progress.Nop{}, discardLogger())

	r, err := eng.Run(t.Context(), testTarget)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !r.IsComplete() {
		t.Fatalf("unexpected failures: %v", r.Failures)
	}
	if v, ok := r.Dataset.Get("2021", "CA", "Denied"); !ok || v != 2 {
		t.Errorf("Get(2021, CA, Denied) = %d, %v", v, ok)
	}
	if r.Dataset.Cells() != 8 {
		t.Errorf("Cells() = %d, want 8", r.Dataset.Cells())
	}
}

func TestLoadFailedRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	previous := model.NewRunReport(testTarget, [3]string{"Year", "State", "Status"})
	previous.Route = model.Route{"State", "Year", "Status"}
	previous.AddFailure(model.Failure{
		Selection: model.NewSelection(model.Choice{Axis: "State", Value: "CA"}),
		Kind:      model.FailureNavigation,
	})
	id, err := db.SaveRun(ctx, previous)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("points the config at the stored run", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.OnlyFailed = id
		got, err := loadFailedRun(ctx, db, cfg)
		if err != nil {
			t.Fatalf("loadFailedRun() error = %v", err)
		}
		if diff := cmp.Diff([]string{testTarget}, cfg.Targets); diff != "" {
			t.Errorf("Targets mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"Year", "State", "Status"}, cfg.Axes); diff != "" {
			t.Errorf("Axes mismatch (-want +got):\n%s", diff)
		}
		if len(got.FailedPrefixes()) != 1 || got.Route.String() != "State > Year > Status" {
			t.Errorf("unexpected run: %+v", got)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("rejects other targets", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.OnlyFailed = id
		cfg.Targets = []string{"https://other.example.test"}
		if _, err := loadFailedRun(ctx, db, cfg); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.OnlyFailed = id + 100
		if _, err := loadFailedRun(ctx, db, cfg); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected a not found error, got %v", err)
		}
	})
}

func testReport(t *testing.T) *model.RunReport {
	t.Helper()
	eng := newEngine(testPage(), testConfig(), config.SiteConfig{FixedBreakdown: "Status"}, nil, progress.Nop{}, discardLogger())
	r, err := eng.Run(t.Context(), testTarget)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestOutputReports(t *testing.T) {
	t.Parallel()

	t.Run("stdout", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Format = config.FormatJSON
		var out bytes.Buffer
		if err := outputReports(&out, cfg, []*model.RunReport{testReport(t)}); err != nil {
			t.Fatalf("outputReports() error = %v", err)
		}
		if !strings.Contains(out.String(), `"runs"`) || !strings.Contains(out.String(), `"version"`) {
			t.Errorf("unexpected output: %s", out.String())
		}
	})

	t.Run("file with terminal summary", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Format = config.FormatCSV
		cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "permits.csv")
		if err := checkWritable(cfg.ReportFile); err != nil {
			t.Fatal(err)
		}
		var out bytes.Buffer
		if err := outputReports(&out, cfg, []*model.RunReport{testReport(t)}); err != nil {
			t.Fatalf("outputReports() error = %v", err)
		}
		if !strings.Contains(out.String(), "Report written to") || !strings.Contains(out.String(), testTarget) {
			t.Errorf("unexpected summary: %s", out.String())
		}
		if strings.Contains(out.String(), "DATASET") {
			t.Error("the summary must not repeat the dataset")
		}

		data, err := os.ReadFile(cfg.ReportFile)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if lines[0] != strings.Join(report.CSVHeader, ",") || len(lines) != 1+8 {
			t.Errorf("unexpected CSV:\n%s", data)
		}
	})
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	for _, format := range config.Formats {
		if _, err := newReportWriter(format, io.Discard); err != nil {
			t.Errorf("newReportWriter(%q) error = %v", format, err)
		}
	}
}

func TestRunCollateCmdValidation(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) error {
		t.Helper()
		cmd := NewCollateCmd()
		cmd.SetOut(io.Discard)
		cmd.SetArgs(append([]string{"--db-dir", t.TempDir(), "--save=false"}, args...))
		return cmd.Execute()
	}

	t.Run("no targets", func(t *testing.T) {
		t.Parallel()
		if err := run(t, "-c", writeSiteConfig(t)); !errors.Is(err, config.ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("unknown axis", func(t *testing.T) {
		t.Parallel()
		err := run(t, "-c", writeSiteConfig(t), "--axes", "Year,State,County", testTarget)
		if !errors.Is(err, config.ErrUnknownAxis) {
			t.Errorf("expected ErrUnknownAxis, got %v", err)
		}
	})

	t.Run("two axes", func(t *testing.T) {
		t.Parallel()
		err := run(t, "-c", writeSiteConfig(t), "--axes", "Year,State", testTarget)
		if !errors.Is(err, config.ErrAxisCount) {
			t.Errorf("expected ErrAxisCount, got %v", err)
		}
	})
}
