// Package localdir serves ledger CSV files from a single base directory.
package localdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kakeibo/internal/sources"
)

// Extension is the only file extension served.
const Extension = ".csv"

type Dir struct {
	raw string
}

// New returns a Dir rooted at base. The directory is checked on every call,
// so a missing directory makes the store "unconfigured" rather than failing startup.
func New(base string) *Dir {
	return &Dir{raw: strings.TrimSpace(base)}
}

// Base resolves the configured directory. It returns sources.ErrNotConfigured when
// the path is empty, missing, or not a directory.
func (d *Dir) Base() (string, error) {
	if d.raw == "" {
		return "", fmt.Errorf("%w: KAKEIBO_DIR not set", sources.ErrNotConfigured)
	}
	p := expandHome(d.raw)
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sources.ErrNotConfigured, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		return "", fmt.Errorf("%w: KAKEIBO_DIR path invalid or not a directory", sources.ErrNotConfigured)
	}
	return abs, nil
}

// ListSources returns the names of regular *.csv files in the base directory.
// An unconfigured directory yields an empty list.
func (d *Dir) ListSources(_ context.Context) ([]string, error) {
	base, err := d.Base()
	if err != nil {
		return []string{}, nil
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("read ledger directory: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if filepath.Ext(e.Name()) != Extension {
			continue
		}
		fi, err := os.Stat(filepath.Join(base, e.Name()))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// ReadSource reads one CSV file after confining it to the base directory.
func (d *Dir) ReadSource(_ context.Context, name string) ([]byte, error) {
	path, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// Resolve validates name and returns the confined absolute path of an existing file.
func (d *Dir) Resolve(name string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		return "", fmt.Errorf("%w: filename must end with .csv", sources.ErrInvalidName)
	}
	base, err := d.Base()
	if err != nil {
		return "", err
	}
	target := filepath.Clean(filepath.Join(base, name))
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path outside KAKEIBO_DIR", sources.ErrInvalidName)
	}
	fi, err := os.Stat(target)
	if err != nil || !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", sources.ErrNotFound, name)
	}
	return target, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
