package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadPreferences_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", "config.json")

	prefs, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(&Preferences{}, prefs); diff != "" {
		t.Errorf("expected zero preferences (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hzdeploy", "config.json")

	want := &Preferences{ServerType: "cx32", Location: "fsn1", DNSProvider: "cloudflare"}
	if err := want.SaveTo(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("preferences mismatch (-want +got):\n%s", diff)
	}
}

func TestSavePreferences_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deep")
	path := filepath.Join(dir, "config.json")

	prefs := &Preferences{Image: "debian-12"}
	if err := prefs.SaveTo(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected preferences file at %s: %v", path, err)
	}
}

func TestLoadPreferences_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json}"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestSavePreferences_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	first := &Preferences{ServerType: "cx22"}
	if err := first.SaveTo(path); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := &Preferences{ServerType: "cax11"}
	if err := second.SaveTo(path); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ServerType != "cax11" {
		t.Errorf("expected ServerType %q, got %q", "cax11", got.ServerType)
	}
}

func TestPath_Override(t *testing.T) {
	SetPath("/tmp/custom.json")
	defer ResetPath()

	got, err := Path()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/tmp/custom.json" {
		t.Errorf("expected override path, got %q", got)
	}
}
