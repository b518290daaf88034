// Package securefile reads and writes owner-only JSON state files with atomic replacement.
package securefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
)

// ErrNotFound is returned by ReadJSON when the file does not exist.
var ErrNotFound = errors.New("securefile: not found")

// WriteJSON marshals v as indented JSON and atomically replaces path.
// The parent directory is created with owner-only permissions.
func WriteJSON[T any](path string, v T) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	return atomicWriteFile(path, b, constants.FilePerm)
}

// ReadJSON loads path into a T. A missing file yields ErrNotFound.
func ReadJSON[T any](path string) (T, error) {
	var out T

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, ErrNotFound
		}
		return out, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return out, nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// ConfigPathCandidates returns state paths to try, in priority order.
// QA_ENV selects an optional local/ or develop/ subfolder.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	envFolder, err := QaEnvFolder()
	if err != nil {
		return nil, err
	}
	if app == "" {
		return nil, errors.New("app must not be empty")
	}
	if filename == "" {
		return nil, errors.New("filename must not be empty")
	}

	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	joinHome := func(home string) string {
		dir := filepath.Join(home, ".config", app)
		if envFolder != "" {
			dir = filepath.Join(dir, envFolder)
		}
		return filepath.Join(dir, filename)
	}

	// snap installs see a confined HOME
	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(joinHome(realHome))
	}
	if home := os.Getenv("HOME"); home != "" {
		add(joinHome(home))
	}

	if dir, err := os.UserConfigDir(); err == nil {
		base := filepath.Join(dir, app)
		if envFolder != "" {
			base = filepath.Join(base, envFolder)
		}
		add(filepath.Join(base, filename))
	} else if len(paths) == 0 {
		return nil, fmt.Errorf("UserConfigDir: %w", err)
	}

	return paths, nil
}

// ResolvePath returns the first existing candidate, or the first candidate when none exist yet.
func ResolvePath(app, filename string) (string, error) {
	cands, err := ConfigPathCandidates(app, filename)
	if err != nil {
		return "", err
	}
	if len(cands) == 0 {
		return "", errors.New("no config path candidates returned")
	}
	for _, p := range cands {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return cands[0], nil
}

func QaEnvFolder() (string, error) {
	raw := strings.TrimSpace(os.Getenv("QA_ENV"))
	switch strings.ToLower(raw) {
	case "", "prod", "production":
		return "", nil
	case "local":
		return "local", nil
	case "dev", "develop", "development":
		return "develop", nil
	default:
		return "", fmt.Errorf("invalid QA_ENV %q (allowed: local, develop, empty)", raw)
	}
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
