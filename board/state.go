package board

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// StateTracker keeps the latest result per board for the HTTP endpoints
// and the MQTT handler
type StateTracker struct {
	mu       sync.RWMutex
	results  map[string]*Result
	cacheDir string // snapshot directory; empty disables persistence
}

// NewStateTracker creates a state tracker without persistence
func NewStateTracker() *StateTracker {
	return &StateTracker{
		results: make(map[string]*Result),
	}
}

// NewStateTrackerWithCache creates a state tracker that snapshots every
// update into cacheDir and restores the snapshots found there.
func NewStateTrackerWithCache(cacheDir string) *StateTracker {
	st := NewStateTracker()
	st.cacheDir = cacheDir
	if cacheDir != "" {
		st.restore()
	}
	return st
}

func (st *StateTracker) restore() {
	matches, err := filepath.Glob(filepath.Join(st.cacheDir, "*.analyses.json"))
	if err != nil {
		return
	}
	for _, path := range matches {
		res, err := LoadSnapshot(path)
		if err != nil {
			log.Warn("skipping unreadable snapshot", "path", path, "err", err)
			continue
		}
		if res == nil {
			continue
		}
		boardID := res.Board
		if boardID == "" {
			boardID = strings.TrimSuffix(filepath.Base(path), ".analyses.json")
		}
		st.results[boardID] = res
		log.Debug("restored snapshot", "board", boardID, "groups", len(res.Analyses))
	}
}

// Update stores the latest result of a board
func (st *StateTracker) Update(boardID string, res *Result) {
	st.mu.Lock()
	st.results[boardID] = res
	cacheDir := st.cacheDir
	st.mu.Unlock()

	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			log.Warn("failed to create snapshot directory", "dir", cacheDir, "err", err)
			return
		}
		if err := SaveSnapshot(filepath.Join(cacheDir, SnapshotFileName(boardID)), res); err != nil {
			log.Warn("failed to save snapshot", "board", boardID, "err", err)
		}
	}
}

// Get returns the latest result of a board
func (st *StateTracker) Get(boardID string) (*Result, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	res, ok := st.results[boardID]
	return res, ok
}

// Boards returns the IDs of all boards with a result, sorted
func (st *StateTracker) Boards() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.results))
	for id := range st.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasResults returns true if at least one board has been analyzed
func (st *StateTracker) HasResults() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.results) > 0
}
