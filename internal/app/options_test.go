package app

import (
	"testing"
	"time"
)

func TestParseArgsDefaults(t *testing.T) {
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if opts.NumAtoms != [3]int32{4, 4, 8} {
		t.Fatalf("unexpected default grid: %v", opts.NumAtoms)
	}
	if opts.Port != -1 {
		t.Fatalf("unexpected default port: %d", opts.Port)
	}
	if opts.Tick != 0.02 {
		t.Fatalf("unexpected default tick: %v", opts.Tick)
	}
	if got := opts.UpdateInterval(); got != 20*time.Millisecond {
		t.Fatalf("unexpected update interval: %v", got)
	}
}

func TestParseArgsFullCommandLine(t *testing.T) {
	opts, err := ParseArgs([]string{
		"-numAtoms", "2", "3", "4",
		"-port", "26000",
		"-tick", "0.05",
		"-config", "/etc/jello.json",
		"-diag", ":8080",
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if opts.NumAtoms != [3]int32{2, 3, 4} {
		t.Fatalf("unexpected grid: %v", opts.NumAtoms)
	}
	if opts.Port != 26000 {
		t.Fatalf("unexpected port: %d", opts.Port)
	}
	if opts.Tick != 0.05 {
		t.Fatalf("unexpected tick: %v", opts.Tick)
	}
	if opts.ConfigPath != "/etc/jello.json" {
		t.Fatalf("unexpected config path: %q", opts.ConfigPath)
	}
	if opts.DiagAddr != ":8080" {
		t.Fatalf("unexpected diag addr: %q", opts.DiagAddr)
	}
}

func TestParseArgsErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"truncated numAtoms", []string{"-numAtoms", "2", "2"}},
		{"non-numeric numAtoms", []string{"-numAtoms", "2", "x", "2"}},
		{"zero dimension", []string{"-numAtoms", "2", "0", "2"}},
		{"missing port value", []string{"-port"}},
		{"negative tick", []string{"-tick", "-0.5"}},
		{"unknown flag", []string{"-frobnicate"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseArgs(tc.args); err == nil {
				t.Fatalf("expected an error for %v", tc.args)
			}
		})
	}
}
