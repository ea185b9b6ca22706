// Package config provides configuration structures and utilities for tabcollate.
// It defines the run options built from CLI flags and the YAML site file that
// describes the cascading-dropdown layout of each collated page.
package config
