// Package appid holds the application's naming surface: binary name, env
// prefix and the directory name used for config and data paths.
package appid

import "strings"

// Identity describes how the application presents itself.
type Identity struct {
	BinaryName  string
	Vendor      string
	EnvPrefix   string
	ConfigName  string
	Description string
}

var current = Identity{
	BinaryName:  "postforge",
	Vendor:      "postforge",
	EnvPrefix:   "POSTFORGE_",
	ConfigName:  "postforge",
	Description: "Rate limit and credential cache tracker for the postforge content client",
}

// Get returns the application identity.
func Get() Identity {
	return current
}

// EnvVar returns the prefixed environment variable name for name.
func (i Identity) EnvVar(name string) string {
	prefix := i.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix + strings.ToUpper(name)
}

// TelemetryNamespace is the metric namespace for this application.
func (i Identity) TelemetryNamespace() string {
	return strings.ReplaceAll(strings.ToLower(i.BinaryName), "-", "_")
}
