package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shared-jello/server/internal/telemetry"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	writeConfig(t, path, `{"params":{"atomMass":2.0,"attenuation":0.5,"gravity":9.81}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := Params{AtomMass: 2.0, Attenuation: 0.5, Gravity: 9.81}
	if cfg.Params != want {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero mass", `{"params":{"atomMass":0,"attenuation":0.5,"gravity":9.81}}`},
		{"attenuation above one", `{"params":{"atomMass":1,"attenuation":1.5,"gravity":9.81}}`},
		{"malformed json", `{"params":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "server.json")
			writeConfig(t, path, tc.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestWatcherAppliesRewrittenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	writeConfig(t, path, `{"params":{"atomMass":1.0,"attenuation":0.5,"gravity":9.81}}`)

	applied := make(chan Params, 16)
	w, err := NewWatcher(path, telemetry.LoggerFunc(nil), func(p Params) {
		applied <- p
	})
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Close()

	writeConfig(t, path, `{"params":{"atomMass":3.0,"attenuation":0.25,"gravity":1.0}}`)

	want := Params{AtomMass: 3.0, Attenuation: 0.25, Gravity: 1.0}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-applied:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for the rewritten config to apply")
		}
	}
}

func TestWatcherSkipsInvalidIntermediateState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	writeConfig(t, path, `{"params":{"atomMass":1.0,"attenuation":0.5,"gravity":9.81}}`)

	applied := make(chan Params, 16)
	w, err := NewWatcher(path, telemetry.LoggerFunc(nil), func(p Params) {
		applied <- p
	})
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Close()

	writeConfig(t, path, `{"params":`)
	writeConfig(t, path, `{"params":{"atomMass":4.0,"attenuation":0.5,"gravity":9.81}}`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-applied:
			if got.AtomMass == 4.0 {
				return
			}
			t.Fatalf("unexpected params applied: %+v", got)
		case <-deadline:
			t.Fatalf("timed out waiting for the valid rewrite to apply")
		}
	}
}
