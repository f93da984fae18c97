package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

var (
	mu       sync.Mutex
	colorize = detectColor()
)

// detectColor reports whether stdout is a terminal that should get ANSI colors.
// NO_COLOR (https://no-color.org) always wins.
func detectColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// out is resolved on every call so tests can swap os.Stdout.
func out() io.Writer { return os.Stdout }

func paint(color, s string) string {
	if !colorize {
		return s
	}
	return color + s + reset
}

func line(color, symbol, tag, msg string) {
	mu.Lock()
	defer mu.Unlock()
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(out(), "%s %s %-8s %s\n", paint(dim, ts), paint(color, symbol), paint(bold, tag), msg)
}

// Info prints a neutral progress message.
func Info(tag, msg string) { line(cyan, "·", tag, msg) }

// Success prints a completed-step message.
func Success(tag, msg string) { line(green, "✓", tag, msg) }

// Warn prints a recoverable problem (skipped file, fallback used).
func Warn(tag, msg string) { line(yellow, "!", tag, msg) }

// Error prints a failure.
func Error(tag, msg string) { line(red, "✗", tag, msg) }

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	mu.Lock()
	defer mu.Unlock()
	w := out()
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(bold+cyan, "  PAX ADVISOR")+"  "+paint(dim, "market intelligence "+version))
	fmt.Fprintln(w, paint(dim, "  "+strings.Repeat("─", 40)))
	fmt.Fprintln(w)
}

// Section prints a heading for a block of CLI output.
func Section(title string) {
	mu.Lock()
	defer mu.Unlock()
	w := out()
	fmt.Fprintln(w)
	fmt.Fprintln(w, paint(bold, "--- "+strings.ToUpper(title)+" ---"))
}

// Stats prints an aligned key/value pair. Numbers get thousands separators.
func Stats(key string, value interface{}) {
	var v string
	switch n := value.(type) {
	case int:
		v = humanize.Comma(int64(n))
	case int64:
		v = humanize.Comma(n)
	case float64:
		v = humanize.CommafWithDigits(n, 2)
	default:
		v = fmt.Sprint(value)
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out(), "  %-24s %s\n", paint(dim, key), v)
}

// Server announces the listening address.
func Server(addr string) {
	Success("Server", fmt.Sprintf("Listening on http://%s", addr))
}
