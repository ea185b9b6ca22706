package config

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
)

// Default selectors used when a site does not name its own.
const (
	DefaultTableSelector = "table"
)

// SiteConfig describes how one page lays out its cascading dropdowns.
type SiteConfig struct {
	// Cookie is sent with every request to the page.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Axes are the default axes collated when --axes is not given.
	Axes []string `yaml:"axes,omitempty"`

	// Controls maps each axis name to the CSS selector of its <select>.
	Controls map[string]string `yaml:"controls,omitempty"`

	// Breakdown is the CSS selector of the <select> choosing which axis the
	// result table breaks down by. Its option labels are axis names.
	Breakdown string `yaml:"breakdown,omitempty"`

	// FixedBreakdown names the only axis the table can break down by, for
	// pages without a breakdown control.
	FixedBreakdown string `yaml:"fixedBreakdown,omitempty"`

	// Table is the CSS selector of the result table.
	Table string `yaml:"table,omitempty"`

	// Busy is the CSS selector of a loading indicator visible while the
	// page re-renders. Optional.
	Busy string `yaml:"busy,omitempty"`

	// AllLabels are placeholder option labels, such as "All", that are not
	// real axis values.
	AllLabels []string `yaml:"allLabels,omitempty"`

	// TotalLabels are the first-cell labels of the table total row.
	TotalLabels []string `yaml:"totalLabels,omitempty"`

	// OptionCounts reports that option labels carry a trailing count, as
	// in "Texas (1,204)". The counts feed the coarse total checks.
	OptionCounts bool `yaml:"optionCounts,omitempty"`

	// ValueColumn is the table column holding the figures. Negative counts
	// from the end. Zero means the second column.
	ValueColumn int `yaml:"valueColumn,omitempty"`
}

// File represents the structure of the .tabcollate configuration file.
type File struct {
	// Sites maps page URLs, or bare hosts, to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to all sites unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a page URL, merging the
// site entry over the defaults. An entry keyed by the exact URL wins over
// one keyed by its host.
func (cf *File) GetSiteConfig(target string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.Controls = maps.Clone(cf.Defaults.Controls)

	site, ok := cf.Sites[target]
	if !ok {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			site, ok = cf.Sites[u.Host]
		}
	}
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.Axes) > 0 {
		result.Axes = site.Axes
	}
	if len(site.Controls) > 0 {
		if result.Controls == nil {
			result.Controls = make(map[string]string)
		}
		maps.Copy(result.Controls, site.Controls)
	}
	if site.Breakdown != "" {
		result.Breakdown = site.Breakdown
	}
	if site.FixedBreakdown != "" {
		result.FixedBreakdown = site.FixedBreakdown
	}
	if site.Table != "" {
		result.Table = site.Table
	}
	if site.Busy != "" {
		result.Busy = site.Busy
	}
	if len(site.AllLabels) > 0 {
		result.AllLabels = site.AllLabels
	}
	if len(site.TotalLabels) > 0 {
		result.TotalLabels = site.TotalLabels
	}
	if site.OptionCounts {
		result.OptionCounts = true
	}
	if site.ValueColumn != 0 {
		result.ValueColumn = site.ValueColumn
	}
	return result
}

// TableSelector returns the table selector or its default.
func (s SiteConfig) TableSelector() string {
	if s.Table == "" {
		return DefaultTableSelector
	}
	return s.Table
}

// Validate checks that every axis has a control and that the breakdown
// can be set for the table.
func (s SiteConfig) Validate(axes []string) error {
	for _, a := range axes {
		if _, ok := s.Controls[a]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAxis, a)
		}
	}
	if s.FixedBreakdown != "" && !slices.Contains(axes, s.FixedBreakdown) {
		return fmt.Errorf("%w: %s", ErrInvalidFixedBreakdown, s.FixedBreakdown)
	}
	return nil
}
