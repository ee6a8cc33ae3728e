// Package config loads and validates application configuration from
// environment variables (prefixed INKWELL_) and an optional YAML file.
package config
