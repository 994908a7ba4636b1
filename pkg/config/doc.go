// Package config loads the pipeline configuration from STATSPIPE_-prefixed
// environment variables and validates it.
package config
