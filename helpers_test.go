package choromap

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
)

// loadFixtureBoundaries parses the synthetic six-country boundary file used
// across the tests. Draw order: USA, FRA, DEU, BRA, ZAF, LSO.
func loadFixtureBoundaries(t *testing.T) *BoundarySet {
	t.Helper()
	fh, err := os.Open("testdata/boundaries.geojson")
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()

	bs, err := ParseBoundaries(fh)
	if err != nil {
		t.Fatalf("ParseBoundaries: %v", err)
	}
	return bs
}

// recordingHandler captures warn-and-above slog records so tests can assert
// on the warnings a call emitted.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) warnings() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]slog.Record, len(h.records))
	copy(out, h.records)
	return out
}

// warningsMentioning returns captured warnings whose message or attrs contain
// the given attribute value.
func (h *recordingHandler) warningsMentioning(value string) int {
	count := 0
	for _, r := range h.warnings() {
		found := false
		r.Attrs(func(a slog.Attr) bool {
			if a.Value.String() == value {
				found = true
				return false
			}
			return true
		})
		if found {
			count++
		}
	}
	return count
}

func newRecordingLogger() (*slog.Logger, *recordingHandler) {
	h := &recordingHandler{}
	return slog.New(h), h
}
