package theme

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"themeqa/model"
)

// MissingFileError reports that the stylesheet could not be found. It is
// fatal: no snapshot is built from a missing source.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("stylesheet not found: %s", e.Path)
}

func (e *MissingFileError) Unwrap() error { return e.Err }

// Source reads a stylesheet and extracts its organization blocks.
type Source struct {
	extractor Extractor
	logger    *slog.Logger
}

// NewSource creates a Source. A nil extractor uses the default grammar.
func NewSource(extractor Extractor, logger *slog.Logger) *Source {
	if extractor == nil {
		extractor = DefaultGrammar()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{extractor: extractor, logger: logger}
}

// LoadFile reads the stylesheet at path.
func (s *Source) LoadFile(path string) ([]model.OrgThemeBlock, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve stylesheet path: %w", err)
	}
	blocks, err := s.Load(os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
	var missing *MissingFileError
	if errors.As(err, &missing) {
		missing.Path = path
	}
	return blocks, err
}

// Load reads the stylesheet name from fsys.
func (s *Source) Load(fsys fs.FS, name string) ([]model.OrgThemeBlock, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{Path: name, Err: err}
		}
		return nil, fmt.Errorf("read stylesheet %s: %w", name, err)
	}

	blocks := s.extractor.ExtractOrgBlocks(string(data))
	if len(blocks) == 0 {
		s.logger.Warn("theme: no organization blocks found", "stylesheet", name)
	}
	s.logger.Debug("theme: extracted organization blocks", "stylesheet", name, "orgs", len(blocks))
	return blocks, nil
}
