package visitor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Data mirrors the on-disk visitor document. The file is read fully and
// rewritten fully on each qualifying update; there is no partial-update path.
type Data struct {
	TotalCount  int            `json:"total_count"`
	DailyCounts map[string]int `json:"daily_counts"`
	Sessions    []string       `json:"sessions"`
}

type Options struct {
	Path   string
	Logger *slog.Logger

	// Now is the clock used for daily bucketing. Defaults to time.Now.
	Now func() time.Time
}

// Tracker counts distinct sessions against a flat JSON file. The mutex
// serializes the read-modify-write cycle within this process; concurrent
// processes sharing the file can still lose updates.
type Tracker struct {
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *slog.Logger
}

func NewTracker(opts Options) *Tracker {
	path := opts.Path
	if path == "" {
		path = "visitor_data.json"
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Tracker{
		path:   path,
		now:    now,
		logger: logger,
	}
}

// Record counts sessionID if it has not been seen before and returns the
// total distinct-session count. A repeat session mutates nothing and
// writes nothing. A missing or unparseable file is treated as empty.
func (t *Tracker) Record(sessionID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := t.loadLocked()

	for _, known := range data.Sessions {
		if known == sessionID {
			return data.TotalCount, nil
		}
	}

	data.Sessions = append(data.Sessions, sessionID)
	data.TotalCount++

	today := t.now().Format("2006-01-02")
	data.DailyCounts[today]++

	if err := t.saveLocked(data); err != nil {
		return data.TotalCount, fmt.Errorf("save visitor data: %w", err)
	}
	return data.TotalCount, nil
}

// Total returns the persisted count without mutating anything.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked().TotalCount
}

// Snapshot returns a copy of the persisted document.
func (t *Tracker) Snapshot() Data {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := t.loadLocked()
	out := Data{
		TotalCount:  data.TotalCount,
		DailyCounts: make(map[string]int, len(data.DailyCounts)),
		Sessions:    append([]string(nil), data.Sessions...),
	}
	for day, n := range data.DailyCounts {
		out.DailyCounts[day] = n
	}
	return out
}

func (t *Tracker) loadLocked() Data {
	empty := Data{DailyCounts: make(map[string]int)}

	raw, err := os.ReadFile(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("visitor data unreadable, starting empty", "path", t.path, "err", err)
		}
		return empty
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		t.logger.Warn("visitor data corrupt, starting empty", "path", t.path, "err", err)
		return empty
	}
	if data.DailyCounts == nil {
		data.DailyCounts = make(map[string]int)
	}
	return data
}

func (t *Tracker) saveLocked(data Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	// Temp file plus rename so readers never observe a partial document.
	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, ".visitor-*.json")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
