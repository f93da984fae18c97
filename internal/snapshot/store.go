package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pax-advisor/internal/logger"
	"pax-advisor/internal/market"
	"pax-advisor/internal/metrics"
)

// File is one snapshot file known to the store.
type File struct {
	Path       string
	CapturedAt time.Time
}

// SkippedFile records why a snapshot file was not used.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// LoadReport summarizes a batch load.
type LoadReport struct {
	Loaded     int           `json:"loaded"`
	Skipped    []SkippedFile `json:"skipped,omitempty"`
	Duplicates int           `json:"duplicates"`
}

func (r *LoadReport) merge(o LoadReport) {
	r.Loaded += o.Loaded
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.Duplicates += o.Duplicates
}

// ReadFunc decodes one snapshot file.
type ReadFunc func(path string, capturedAt time.Time) (market.Snapshot, int, error)

type cached struct {
	snap  market.Snapshot
	dupes int
}

// Store gives read-only access to the append-only snapshot directory.
// Decoded snapshots are cached by path (files are immutable once written) and
// concurrent loads of the same file are coalesced with singleflight.
type Store struct {
	dir        string
	latestFile string
	workers    int
	read       ReadFunc

	mu      sync.RWMutex
	files   []File // sorted by CapturedAt, oldest first
	entries map[string]cached
	group   singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithWorkers bounds parallel file decoding. n <= 0 keeps the default.
func WithWorkers(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithReader swaps the file decoder (tests).
func WithReader(fn ReadFunc) Option {
	return func(s *Store) { s.read = fn }
}

// NewStore creates a store over historyDir. latestFile is the optional
// "current listings" pointer the ETL rewrites on every capture.
// Call Refresh to build the file index.
func NewStore(historyDir, latestFile string, opts ...Option) *Store {
	s := &Store{
		dir:        historyDir,
		latestFile: latestFile,
		workers:    4,
		read:       ReadParquet,
		entries:    make(map[string]cached),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the history directory.
func (s *Store) Dir() string { return s.dir }

// Refresh rescans the history directory. A missing directory yields an empty index.
func (s *Store) Refresh() error {
	var files []File
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".parquet") {
			return nil
		}
		files = append(files, File{Path: path, CapturedAt: captureTime(path, d)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.dir, err)
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].CapturedAt.Equal(files[j].CapturedAt) {
			return files[i].Path < files[j].Path
		}
		return files[i].CapturedAt.Before(files[j].CapturedAt)
	})

	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return nil
}

// captureTime parses market_YYYY-MM-DD_HH-MM.parquet, falling back to mtime.
func captureTime(path string, d fs.DirEntry) time.Time {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stamp := strings.TrimPrefix(base, "market_")
	if t, err := time.ParseInLocation("2006-01-02_15-04", stamp, time.UTC); err == nil {
		return t
	}
	if d != nil {
		if info, err := d.Info(); err == nil {
			return info.ModTime().UTC()
		}
	}
	return time.Time{}
}

// Files returns a copy of the file index, oldest first.
func (s *Store) Files() []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Load decodes one file, using the cache when possible.
func (s *Store) Load(ctx context.Context, f File) (market.Snapshot, int, error) {
	if err := ctx.Err(); err != nil {
		return market.Snapshot{}, 0, err
	}
	s.mu.RLock()
	e, ok := s.entries[f.Path]
	s.mu.RUnlock()
	if ok {
		return e.snap, e.dupes, nil
	}

	v, err, _ := s.group.Do(f.Path, func() (interface{}, error) {
		snap, dupes, err := s.read(f.Path, f.CapturedAt)
		if err != nil {
			return nil, err
		}
		c := cached{snap: snap, dupes: dupes}
		s.mu.Lock()
		s.entries[f.Path] = c
		s.mu.Unlock()
		metrics.SnapshotsLoaded.Inc()
		return c, nil
	})
	if err != nil {
		return market.Snapshot{}, 0, err
	}
	c := v.(cached)
	return c.snap, c.dupes, nil
}

// loadMany decodes files in parallel. Failed files are skipped with a warning;
// the returned snapshots are ordered by capture time.
func (s *Store) loadMany(ctx context.Context, files []File) ([]market.Snapshot, LoadReport, error) {
	results := make([]*market.Snapshot, len(files))
	reasons := make([]error, len(files))
	dupes := make([]int, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			snap, d, err := s.Load(gctx, f)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				reasons[i] = err
				return nil
			}
			results[i] = &snap
			dupes[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, LoadReport{}, err
	}

	var report LoadReport
	snaps := make([]market.Snapshot, 0, len(files))
	for i, f := range files {
		if results[i] == nil {
			report.Skipped = append(report.Skipped, SkippedFile{Path: f.Path, Reason: reasons[i].Error()})
			metrics.SnapshotsSkipped.Inc()
			logger.Warn("STORE", fmt.Sprintf("Skipping %s: %v", filepath.Base(f.Path), reasons[i]))
			continue
		}
		if dupes[i] > 0 {
			logger.Warn("STORE", fmt.Sprintf("%s: dropped %d duplicate listing ids", filepath.Base(f.Path), dupes[i]))
		}
		report.Loaded++
		report.Duplicates += dupes[i]
		snaps = append(snaps, *results[i])
	}
	market.SortByCapture(snaps)
	return snaps, report, nil
}

// All loads the full history, oldest first.
func (s *Store) All(ctx context.Context) ([]market.Snapshot, LoadReport, error) {
	return s.loadMany(ctx, s.Files())
}

// AllInWindow loads snapshots captured within [start, end]. A zero bound is open.
func (s *Store) AllInWindow(ctx context.Context, start, end time.Time) ([]market.Snapshot, LoadReport, error) {
	var picked []File
	for _, f := range s.Files() {
		if !start.IsZero() && f.CapturedAt.Before(start) {
			continue
		}
		if !end.IsZero() && f.CapturedAt.After(end) {
			continue
		}
		picked = append(picked, f)
	}
	return s.loadMany(ctx, picked)
}

// LastN loads up to n of the most recent loadable snapshots, walking back past
// files that fail to load. The result is oldest first.
func (s *Store) LastN(ctx context.Context, n int) ([]market.Snapshot, LoadReport, error) {
	files := s.Files()
	var (
		out    []market.Snapshot
		report LoadReport
	)
	for end := len(files); end > 0 && len(out) < n; {
		start := max(0, end-(n-len(out)))
		snaps, r, err := s.loadMany(ctx, files[start:end])
		if err != nil {
			return nil, report, err
		}
		report.merge(r)
		out = append(snaps, out...)
		end = start
	}
	return out, report, nil
}

// Latest returns the current listings: the latest pointer file when present,
// otherwise the newest loadable history snapshot. ok is false when there is no data.
func (s *Store) Latest(ctx context.Context) (market.Snapshot, bool, error) {
	if s.latestFile != "" {
		if info, err := os.Stat(s.latestFile); err == nil {
			// The pointer file is rewritten in place, so it is never cached.
			snap, dupes, err := s.read(s.latestFile, info.ModTime().UTC())
			if err == nil {
				if dupes > 0 {
					logger.Warn("STORE", fmt.Sprintf("latest: dropped %d duplicate listing ids", dupes))
				}
				return snap, true, nil
			}
			metrics.SnapshotsSkipped.Inc()
			logger.Warn("STORE", fmt.Sprintf("Latest file unusable, falling back to history: %v", err))
		}
	}
	snaps, _, err := s.LastN(ctx, 1)
	if err != nil {
		return market.Snapshot{}, false, err
	}
	if len(snaps) == 0 {
		return market.Snapshot{}, false, nil
	}
	return snaps[0], true, nil
}
