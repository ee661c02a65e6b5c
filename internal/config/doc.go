// Package config loads, normalizes, and validates Scribe's TOML configuration.
package config
