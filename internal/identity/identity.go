// Package identity provides device identity information for hadash.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultVersion is the fallback version string when metadata.json is not found.
const DefaultVersion = "0.1.0"

// Info holds device identity information.
type Info struct {
	Hostname    string `json:"hostname"`
	Version     string `json:"version"`      // software version string e.g. "0.1.0"
	DeviceLabel string `json:"device_label"` // attached to profiles saved from this device
	UserID      string `json:"user_id,omitempty"`
}

// Load gathers identity for a device running out of dataDir. An empty label
// falls back to the hostname.
func Load(dataDir, label, userID string) Info {
	host := GetHostname()
	return Info{
		Hostname:    host,
		Version:     GetVersionFromDir(dataDir),
		DeviceLabel: DeviceLabel(label, host),
		UserID:      userID,
	}
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "hadash"
	}
	return h
}

// DeviceLabel returns label trimmed, or host when label is blank.
func DeviceLabel(label, host string) string {
	if l := strings.TrimSpace(label); l != "" {
		return l
	}
	return host
}

// GetVersionFromDir reads the version from dir/metadata.json and normalizes
// it ("v1.2" becomes "1.2.0"). Falls back to DefaultVersion if the file is
// missing, unreadable or not a semantic version.
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

	raw, _ := meta["version"].(string)
	v, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(raw), "v"))
	if err != nil {
		return DefaultVersion
	}
	return v.String()
}
