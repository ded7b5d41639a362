// Package config loads and validates the daemon configuration from
// config.yaml and environment variables.
package config
