// Package config provides configuration structures and utilities for deadlinks.
// It defines the link validation options, the harness-level settings
// (validation switch, site URL) and the YAML configuration file loader.
package config
