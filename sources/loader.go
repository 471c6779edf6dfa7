package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/richinex/reportflow/model"
)

// FileLoader resolves a session's manifest from disk. A manifest named
// after the session in Dir wins over the Default manifest. With neither
// present the session has no sources.
type FileLoader struct {
	Dir      string
	Default  string
	MaxBytes int
	Logger   *slog.Logger
}

// Load returns the session's content items.
func (l *FileLoader) Load(ctx context.Context, sessionID string) ([]model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.manifestPath(sessionID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		l.logger().Info("no source manifest", "session_id", sessionID)
		return nil, nil
	}

	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	items, err := m.Items(l.MaxBytes)
	if err != nil {
		return nil, err
	}
	l.logger().Debug("manifest loaded", "session_id", sessionID, "path", path, "items", len(items))
	return items, nil
}

func (l *FileLoader) manifestPath(sessionID string) (string, error) {
	if l.Dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(l.Dir, sessionID+ext)
			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("sources: stat %s: %w", path, err)
			}
		}
	}
	if l.Default == "" {
		return "", nil
	}
	if _, err := os.Stat(l.Default); err != nil {
		return "", fmt.Errorf("sources: default manifest: %w", err)
	}
	return l.Default, nil
}

func (l *FileLoader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
