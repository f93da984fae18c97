package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// capture redirects stdout for the duration of fn and returns what was written.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	prevColor := colorize
	colorize = false
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = old
		colorize = prevColor
	}()

	fn()

	w.Close()
	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestLevels_WriteTagAndMessage(t *testing.T) {
	got := capture(t, func() {
		Info("STORE", "loading")
		Success("STORE", "loaded")
		Warn("STORE", "skipped")
		Error("STORE", "failed")
	})
	for _, want := range []string{"loading", "loaded", "skipped", "failed", "STORE"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "\033[") {
		t.Error("colors should be disabled when colorize=false")
	}
}

func TestBanner_DefaultsVersion(t *testing.T) {
	got := capture(t, func() { Banner("") })
	if !strings.Contains(got, "dev") {
		t.Errorf("Banner(\"\") should print dev version, got %q", got)
	}
	got = capture(t, func() { Banner("v1.2.0") })
	if !strings.Contains(got, "v1.2.0") {
		t.Errorf("Banner(v1.2.0) missing version, got %q", got)
	}
}

func TestStats_FormatsNumbers(t *testing.T) {
	got := capture(t, func() {
		Section("Liquidity")
		Stats("units", 12500)
		Stats("volume", 1234567.5)
		Stats("zone", "merrie-ulaid")
	})
	if !strings.Contains(got, "--- LIQUIDITY ---") {
		t.Errorf("Section heading missing: %q", got)
	}
	if !strings.Contains(got, "12,500") {
		t.Errorf("int not comma formatted: %q", got)
	}
	if !strings.Contains(got, "1,234,567.5") {
		t.Errorf("float not comma formatted: %q", got)
	}
	if !strings.Contains(got, "merrie-ulaid") {
		t.Errorf("string value missing: %q", got)
	}
}
