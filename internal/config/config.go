// Package config loads environment settings and the per-run request
// profile.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/excelcw/dtools-pull/internal/report"
)

// Config holds environment-driven settings loaded from environment
// variables.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE" default:"Dtools.log"`

	// D-Tools cloud API
	BaseURL         string        `envconfig:"DTOOLS_BASE_URL" default:"https://dtcloudapi.d-tools.cloud"`
	CredentialsFile string        `envconfig:"DTOOLS_CREDENTIALS_FILE" default:"AUTHENTICATION"`
	DailyQuota      int           `envconfig:"DAILY_QUOTA" default:"10000"`
	PacingInterval  time.Duration `envconfig:"PACING_INTERVAL" default:"750ms"`

	// Local persistence
	CacheDir  string `envconfig:"CACHE_DIR" default:"."`
	QuotaFile string `envconfig:"QUOTA_FILE" default:"Dtools_API_Calls.txt"`

	// Run profile and status surface
	ProfileFile string `envconfig:"RUN_PROFILE" default:"profile.yaml"`
	StatusAddr  string `envconfig:"STATUS_ADDR"` // empty disables the status server
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// StatusEnabled reports whether the HTTP status server should run.
func (c *Config) StatusEnabled() bool {
	return c.StatusAddr != ""
}

// PreferCache carries the five independent prefer-cache flags the run
// profile supplies. Nil pointers fall back to true, matching the default
// checkbox state of the original request surface.
type PreferCache struct {
	TimeEntries     *bool `yaml:"timeEntries"`
	OpportunityList *bool `yaml:"opportunityList"`
	Details         *bool `yaml:"details"`
	Quotes          *bool `yaml:"quotes"`
	ChangeOrders    *bool `yaml:"changeOrders"`
}

// Profile is the per-run request a GUI would otherwise supply: the ordered
// output column set, the prefer-cache flags, and the output path.
type Profile struct {
	Columns     []string    `yaml:"columns"`
	PreferCache PreferCache `yaml:"preferCache"`
	Output      string      `yaml:"output"`
}

// DefaultProfile selects every column, prefers cache for every kind, and
// writes a timestamped output file.
func DefaultProfile() Profile {
	return Profile{
		Columns: report.DefaultColumns(),
		Output:  DefaultOutputPath(time.Now()),
	}
}

// DefaultOutputPath builds the timestamped CSV file name.
func DefaultOutputPath(now time.Time) string {
	return fmt.Sprintf("Dtools_Opportunity_Hours_%s_%s.csv",
		now.Format("02January2006"), now.Format("150405"))
}

// LoadProfile reads the YAML run profile. A missing file yields the default
// profile; a present but unparsable file is an error (the run request is
// source of truth, unlike the cache).
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProfile(), nil
		}
		return Profile{}, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if len(p.Columns) == 0 {
		p.Columns = report.DefaultColumns()
	}
	if p.Output == "" {
		p.Output = DefaultOutputPath(time.Now())
	}
	return p, nil
}

// flag resolves a tri-state profile flag to its default-true value.
func flag(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

// PreferTimeEntries resolves the time-entry snapshot flag.
func (p Profile) PreferTimeEntries() bool { return flag(p.PreferCache.TimeEntries) }

// PreferOpportunityList resolves the opportunity list snapshot flag.
func (p Profile) PreferOpportunityList() bool { return flag(p.PreferCache.OpportunityList) }

// PreferDetails resolves the opportunity detail flag.
func (p Profile) PreferDetails() bool { return flag(p.PreferCache.Details) }

// PreferQuotes resolves the quote detail flag.
func (p Profile) PreferQuotes() bool { return flag(p.PreferCache.Quotes) }

// PreferChangeOrders resolves the change order detail flag.
func (p Profile) PreferChangeOrders() bool { return flag(p.PreferCache.ChangeOrders) }
