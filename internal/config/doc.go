// Package config provides configuration structures and utilities for flexible.
// It defines the crawl limits, HTTP options, queue backend selection and
// report preferences, plus the optional YAML file holding per-host settings.
package config
