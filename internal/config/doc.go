// Package config loads the runtime configuration from an optional YAML file,
// PSNU_* environment variables and built-in defaults.
package config
