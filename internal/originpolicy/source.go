package originpolicy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source supplies the raw allowlist configuration value. Load returns nil
// when the value is absent, which callers resolve to defaults; it returns
// an error only when the backing store failed, never for absence.
type Source interface {
	Name() string
	Load(ctx context.Context) (*string, error)
}

// StaticSource serves a fixed raw value captured at configuration time.
// Changing it requires a restart; the dynamic sources exist for live
// updates.
type StaticSource struct {
	Raw *string
}

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(context.Context) (*string, error) {
	return s.Raw, nil
}

// EnvSource reads the named environment variable on every load, so a
// reload picks up changes without a restart. An unset variable is absent;
// a set-but-empty one is an explicit empty allowlist.
type EnvSource struct {
	Key string
}

func (s EnvSource) Name() string { return "env:" + s.Key }

func (s EnvSource) Load(context.Context) (*string, error) {
	raw, ok := os.LookupEnv(s.Key)
	if !ok {
		return nil, nil
	}
	return &raw, nil
}

// FileSource reads the allowlist from a file. Entries may be separated by
// commas or newlines. A missing file means the value is absent, not an
// error.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + filepath.Base(s.Path) }

func (s FileSource) Load(context.Context) (*string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allowlist file: %w", err)
	}
	raw := strings.ReplaceAll(string(data), "\n", ",")
	return &raw, nil
}
