package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"themeqa/model"
	"themeqa/report"
)

const (
	LatestFile   = "latest.json"
	BaselineFile = "baseline.json"
	ReportFile   = "report.md"
	HTMLFile     = "report.html"

	VisualDir         = "visual"
	VisualReportJSON  = "visual-report.json"
	VisualReportMD    = "visual-report.md"
	visualLatestDir   = "latest"
	visualBaselineDir = "baseline"
)

// Store persists snapshots and reports under a single output directory.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// New creates a new Store instance with the given base directory.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Path joins name onto the store directory.
func (s *Store) Path(name ...string) string {
	return filepath.Join(append([]string{s.baseDir}, name...)...)
}

// EnsureDirs creates the output directory used by the token pipeline.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(s.baseDir, 0o755)
}

// EnsureVisualDirs creates the screenshot directories.
func (s *Store) EnsureVisualDirs() error {
	for _, dir := range []string{
		s.VisualLatestDir(),
		s.VisualBaselineDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) VisualLatestDir() string   { return s.Path(VisualDir, visualLatestDir) }
func (s *Store) VisualBaselineDir() string { return s.Path(VisualDir, visualBaselineDir) }

// SaveLatest writes the snapshot of the current run.
func (s *Store) SaveLatest(snap *model.Snapshot) error {
	return s.saveSnapshot(LatestFile, snap)
}

// PromoteBaseline replaces the baseline with snap.
func (s *Store) PromoteBaseline(snap *model.Snapshot) error {
	return s.saveSnapshot(BaselineFile, snap)
}

// LoadBaseline returns the stored baseline. ok is false when none exists yet.
func (s *Store) LoadBaseline() (snap *model.Snapshot, ok bool, err error) {
	return s.loadSnapshot(BaselineFile)
}

func (s *Store) saveSnapshot(name string, snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	data, err := report.JSON(snap)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.WriteFile(name, data)
}

func (s *Store) loadSnapshot(name string) (*model.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var snap model.Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", name, err)
	}
	if snap.Orgs == nil {
		snap.Orgs = make(map[string]model.OrgSnapshot)
	}
	return &snap, true, nil
}

// WriteJSON writes v as indented JSON to name.
func (s *Store) WriteJSON(name string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.WriteFile(name, buf.Bytes())
}

// WriteFile atomically replaces name with data.
func (s *Store) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.Path(name), data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
