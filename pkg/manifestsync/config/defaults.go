// Package config loads manifestsync settings from a YAML file, environment
// variables and command-line flags.
package config

import "time"

// Defaults.
const (
	// EnvPrefix prefixes environment overrides, e.g. MANIFESTSYNC_VARIANT.
	EnvPrefix = "MANIFESTSYNC"

	DefaultVariant       = "sync"
	DefaultOutput        = "pretty"
	DefaultRetentionDays = 90
	DefaultDebounce      = 500 * time.Millisecond
	DefaultLogLevel      = "info"
	DefaultLogMaxSize    = "10MB"
)

// DefaultComponents are the per-component log levels written by WriteDefault.
var DefaultComponents = map[string]string{
	"sync":    "info",
	"audit":   "info",
	"watcher": "warn",
}
