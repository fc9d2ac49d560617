// Package cfmeta fills live edge metadata (ray id, serving data center, client address)
// into error page parameters.
package cfmeta

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed data/cf-colos.bundled.json
var bundledLocations []byte

// Location is one data-center entry.
type Location struct {
	City    string  `json:"city" yaml:"city"`
	Region  string  `json:"region,omitempty" yaml:"region,omitempty"`
	Country string  `json:"cca2,omitempty" yaml:"cca2,omitempty"`
	Lat     float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty" yaml:"lon,omitempty"`
}

// LocationTable maps three-letter data-center codes to locations. It loads lazily on first
// use, from the primary file and then the bundled copy, and never reloads.
type LocationTable struct {
	path     string
	fallback []byte
	logger   *zap.Logger

	once    sync.Once
	entries map[string]Location
}

// TableOption customises a LocationTable.
type TableOption func(*LocationTable)

// WithTableLogger sets the logger used to report load failures.
func WithTableLogger(logger *zap.Logger) TableOption {
	return func(t *LocationTable) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithFallbackData replaces the bundled fallback table. A nil slice disables the fallback.
func WithFallbackData(data []byte) TableOption {
	return func(t *LocationTable) {
		t.fallback = data
	}
}

// NewLocationTable returns a table reading from path, which may be empty.
func NewLocationTable(path string, opts ...TableOption) *LocationTable {
	t := &LocationTable{
		path:     strings.TrimSpace(path),
		fallback: bundledLocations,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Lookup returns the city for a data-center code, case-insensitively.
func (t *LocationTable) Lookup(code string) (string, bool) {
	entries := t.load()
	loc, ok := entries[strings.ToUpper(strings.TrimSpace(code))]
	if !ok || loc.City == "" {
		return "", false
	}
	return loc.City, true
}

// Len reports the number of loaded entries.
func (t *LocationTable) Len() int {
	return len(t.load())
}

func (t *LocationTable) load() map[string]Location {
	t.once.Do(func() {
		entries, err := t.readPrimary()
		if err != nil {
			t.logger.Debug("cfmeta: primary location data unavailable", zap.String("path", t.path), zap.Error(err))
			entries, err = decodeLocations(t.fallback, false)
			if err != nil {
				t.logger.Debug("cfmeta: bundled location data unavailable", zap.Error(err))
				entries = map[string]Location{}
			}
		}
		t.entries = entries
	})
	return t.entries
}

func (t *LocationTable) readPrimary() (map[string]Location, error) {
	if t.path == "" {
		return nil, errors.New("no primary path configured")
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(t.path))
	return decodeLocations(data, ext == ".yaml" || ext == ".yml")
}

func decodeLocations(data []byte, isYAML bool) (map[string]Location, error) {
	if len(data) == 0 {
		return nil, errors.New("empty location data")
	}
	raw := make(map[string]Location)
	var err error
	if isYAML {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("decode location data: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("location data has no entries")
	}
	entries := make(map[string]Location, len(raw))
	for code, loc := range raw {
		entries[strings.ToUpper(strings.TrimSpace(code))] = loc
	}
	return entries, nil
}
