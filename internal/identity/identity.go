// Package identity reports the host name and version the daemon announces.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.1.0"

// DefaultHostname is used when the OS cannot report one.
const DefaultHostname = "fmsession"

// Info holds the daemon's identity.
type Info struct {
	Hostname string
	Version  string
}

// Get returns the identity, reading the version from configDir.
func Get(configDir string) Info {
	return Info{Hostname: GetHostname(), Version: GetVersionFromDir(configDir)}
}

// GetHostname returns the system hostname, without a domain suffix.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return DefaultHostname
	}
	if i := strings.IndexByte(h, '.'); i > 0 {
		h = h[:i]
	}
	return h
}

// GetVersionFromDir reads "version" from metadata.json in dir.
// Falls back to DefaultVersion if the file is missing or unreadable.
func GetVersionFromDir(dir string) string {
	if dir == "" {
		return DefaultVersion
	}
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return DefaultVersion
	}

	if v, ok := meta["version"].(string); ok && v != "" {
		return v
	}
	return DefaultVersion
}
