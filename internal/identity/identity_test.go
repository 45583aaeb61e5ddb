package identity_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianhealey/hadash/internal/identity"
)

func TestGetVersion_Fallback(t *testing.T) {
	// Use a temp dir that contains no metadata.json
	dir := t.TempDir()
	got := identity.GetVersionFromDir(dir)
	if got != identity.DefaultVersion {
		t.Errorf("GetVersionFromDir(%q) = %q; want %q", dir, got, identity.DefaultVersion)
	}
}

func TestGetVersion_FromFile(t *testing.T) {
	dir := t.TempDir()
	want := "1.2.3"
	data, _ := json.Marshal(map[string]interface{}{"version": want})
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	got := identity.GetVersionFromDir(dir)
	if got != want {
		t.Errorf("GetVersionFromDir(%q) = %q; want %q", dir, got, want)
	}
}

func TestGetVersion_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	got := identity.GetVersionFromDir(dir)
	if got != identity.DefaultVersion {
		t.Errorf("GetVersionFromDir with invalid JSON = %q; want %q", got, identity.DefaultVersion)
	}
}

func TestGetVersion_Normalized(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"v1.4", "1.4.0"},
		{" 2.0.1-rc.1 ", "2.0.1-rc.1"},
		{"nightly", identity.DefaultVersion},
		{"", identity.DefaultVersion},
	}
	for _, tt := range tests {
		dir := t.TempDir()
		data, _ := json.Marshal(map[string]interface{}{"version": tt.raw})
		if err := os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0644); err != nil {
			t.Fatal(err)
		}
		if got := identity.GetVersionFromDir(dir); got != tt.want {
			t.Errorf("version %q: got %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDeviceLabel(t *testing.T) {
	tests := []struct {
		label, host, want string
	}{
		{"Kitchen panel", "pi", "Kitchen panel"},
		{"  Hall  ", "pi", "Hall"},
		{"", "pi", "pi"},
		{"   ", "pi", "pi"},
	}
	for _, tt := range tests {
		if got := identity.DeviceLabel(tt.label, tt.host); got != tt.want {
			t.Errorf("DeviceLabel(%q, %q) = %q; want %q", tt.label, tt.host, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	info := identity.Load(t.TempDir(), "", "u1")
	if info.Hostname == "" {
		t.Error("Hostname is empty")
	}
	if info.DeviceLabel != info.Hostname {
		t.Errorf("DeviceLabel = %q; want hostname %q", info.DeviceLabel, info.Hostname)
	}
	if info.Version != identity.DefaultVersion {
		t.Errorf("Version = %q; want %q", info.Version, identity.DefaultVersion)
	}
	if info.UserID != "u1" {
		t.Errorf("UserID = %q; want u1", info.UserID)
	}
}
