package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "tabcollate"

	// DefaultConcurrency is the number of pages collated at once.
	// Each page holds its own browser tab, so two is the safe ceiling for
	// ordinary machines.
	DefaultConcurrency = 2

	// DefaultAttempts is the retry budget of each page interaction.
	DefaultAttempts = 3

	// DefaultRetryDelay is the pause between attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultStableTimeout bounds the wait for the page to settle after a choice.
	DefaultStableTimeout = 10 * time.Second

	// DefaultSettle is how long the page must stay unchanged to count as stable.
	DefaultSettle = 300 * time.Millisecond

	// DefaultPoll is the interval between stability probes.
	DefaultPoll = 50 * time.Millisecond

	// DefaultSampleLimit is how many values per axis are sampled when
	// optimizing the route.
	DefaultSampleLimit = 5

	// DefaultNavigationTimeout bounds the initial page load.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultUserAgent is sent by the browser unless overridden.
	DefaultUserAgent = "tabcollate/1.0 (+https://github.com/nao1215/tabcollate)"

	// DefaultFormat is the report format written when none is given.
	DefaultFormat = FormatText
)

// Report formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
)

// Formats lists the supported report formats.
var Formats = []string{FormatText, FormatJSON, FormatMarkdown, FormatCSV, FormatXLSX}

// Config holds all configuration options for a collation run.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Targets is the list of page URLs to collate.
	Targets []string

	// Axes are the three axis names to collate, in output order: the first
	// two key the rows, the third labels the columns.
	Axes []string

	// Optimize plans the route from sampled conditional branching instead of
	// plain value counts. It costs extra interactions up front.
	Optimize bool

	// Concurrency is the number of pages collated at the same time.
	Concurrency int

	// Attempts is the retry budget for each page interaction.
	Attempts int

	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration

	// StableTimeout, Settle and Poll control the wait after each choice.
	StableTimeout time.Duration
	Settle        time.Duration
	Poll          time.Duration

	// InteractionDelay is the minimum gap between two choices on a page.
	InteractionDelay time.Duration

	// SampleLimit is the number of values per axis sampled with Optimize.
	SampleLimit int

	// RevisitOnMismatch re-visits a combination this many more times when
	// its totals disagree. Zero reports the first mismatch.
	RevisitOnMismatch int

	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration

	// Headless runs the browser without a window.
	Headless bool

	// BrowserPath is the Chrome executable. Empty uses the one on PATH.
	BrowserPath string

	// RemoteBrowser is the DevTools websocket URL of an already running
	// browser. When set, no browser is started.
	RemoteBrowser string

	// UserAgent is sent with every request the browser makes.
	UserAgent string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the site configuration file.
	// If empty, .tabcollate is searched in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the site configurations loaded from the config file.
	SiteConfigs *File

	// Format is the report format, one of Formats.
	Format string

	// ReportFile is the output path. Empty writes to stdout.
	ReportFile string

	// MetricsFile, when set, receives progress gauges in Prometheus text
	// format after every target.
	MetricsFile string

	// DBDir is the directory of the SQLite run history.
	DBDir string

	// SaveToDB stores every run in the history.
	SaveToDB bool

	// OnlyFailed, when non-zero, is the stored run whose failures are
	// collated again and merged into its dataset.
	OnlyFailed int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Concurrency:       DefaultConcurrency,
		Attempts:          DefaultAttempts,
		RetryDelay:        DefaultRetryDelay,
		StableTimeout:     DefaultStableTimeout,
		Settle:            DefaultSettle,
		Poll:              DefaultPoll,
		SampleLimit:       DefaultSampleLimit,
		NavigationTimeout: DefaultNavigationTimeout,
		Headless:          true,
		UserAgent:         DefaultUserAgent,
		Format:            DefaultFormat,
	}
}

// XDGDataDir returns the XDG data directory for tabcollate.
// On Linux: ~/.local/share/tabcollate
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for tabcollate.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// AxisTriple returns the axes as a fixed-size array.
// It must only be called on a validated Config.
func (c *Config) AxisTriple() [3]string {
	return [3]string{c.Axes[0], c.Axes[1], c.Axes[2]}
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 && c.OnlyFailed == 0 {
		return ErrNoTarget
	}
	if err := ValidateAxes(c.Axes); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Attempts <= 0 {
		return ErrInvalidAttempts
	}
	if c.RetryDelay < 0 || c.InteractionDelay < 0 || c.Settle < 0 {
		return ErrInvalidDelay
	}
	if c.StableTimeout <= 0 || c.Poll <= 0 || c.NavigationTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.SampleLimit <= 0 {
		return ErrInvalidSampleLimit
	}
	if c.RevisitOnMismatch < 0 {
		return ErrInvalidRevisit
	}
	if !slices.Contains(Formats, c.Format) {
		return fmt.Errorf("%w: %q (want one of %v)", ErrUnknownFormat, c.Format, Formats)
	}
	if c.Format == FormatXLSX && c.ReportFile == "" {
		return ErrFormatNeedsFile
	}
	return nil
}

// ValidateAxes checks that axes names exactly three distinct axes.
func ValidateAxes(axes []string) error {
	if len(axes) != 3 {
		return fmt.Errorf("%w: got %d", ErrAxisCount, len(axes))
	}
	seen := make(map[string]struct{}, len(axes))
	for _, a := range axes {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateAxis, a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
