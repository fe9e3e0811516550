// internal/profile/file.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileSource reads the profile from a YAML or JSON file that an editor owns.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource resolves a leading "~" in path. The file need not exist yet.
func NewFileSource(path string, logger *zap.Logger) (*FileSource, error) {
	expanded, err := homedir.Expand(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("failed to expand profile path %q: %w", path, err)
	}
	if expanded == "" {
		return nil, fmt.Errorf("profile path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: expanded, logger: logger.Named("profile_file")}, nil
}

// Path returns the resolved file location.
func (s *FileSource) Path() string { return s.path }

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Decode parses a profile document. YAML is chosen by extension; anything
// else is read as JSON.
func Decode(path string, data []byte) (*schemas.Profile, error) {
	var p schemas.Profile
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse YAML profile: %w", err)
		}
	} else if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse JSON profile: %w", err)
	}
	Normalize(&p)
	return &p, nil
}

// Load reads and normalizes the file. A missing or blank file means no
// profile has been saved yet and yields (nil, nil).
func (s *FileSource) Load(ctx context.Context) (*schemas.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("No profile file.", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", s.path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return Decode(s.path, data)
}

// Watch emits when the file is written, created or renamed into place.
// The directory is watched so editors that replace the file atomically are
// still seen. Bursts of events coalesce into one signal.
func (s *FileSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	target := filepath.Clean(s.path)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				s.logger.Debug("Profile file changed.", zap.String("op", ev.Op.String()))
				select {
				case out <- struct{}{}:
				default:
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Profile watcher error.", zap.Error(werr))
			}
		}
	}()
	return out, nil
}
