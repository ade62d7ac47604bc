package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileStore keeps artifacts on disk under root/<sessionID>/<artifactID>.
type FileStore struct {
	root     string
	maxBytes int
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, optFns ...func(o *Options)) (*FileStore, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	return &FileStore{root: root, maxBytes: opts.MaxBytes}, nil
}

// Save writes the artifact atomically, replacing an existing one.
func (f *FileStore) Save(sessionID, artifactID string, data []byte) error {
	if sessionID == "" || artifactID == "" {
		return fmt.Errorf("session and artifact id are required")
	}

	if f.maxBytes > 0 && len(data) > f.maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), f.maxBytes)
	}

	path, err := f.path(sessionID, artifactID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write artifact: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename artifact: %w", err)
	}

	return nil
}

// Get returns the artifact bytes or ErrNotFound.
func (f *FileStore) Get(sessionID, artifactID string) ([]byte, error) {
	path, err := f.path(sessionID, artifactID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	return data, nil
}

// List returns the sorted artifact ids stored for the session.
func (f *FileStore) List(sessionID string) ([]string, error) {
	dir, err := f.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".tmp-") {
			ids = append(ids, e.Name())
		}
	}

	slices.Sort(ids)

	return ids, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (f *FileStore) Delete(sessionID, artifactID string) error {
	path, err := f.path(sessionID, artifactID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete artifact: %w", err)
	}

	// drop the session directory once empty
	_ = os.Remove(filepath.Dir(path))

	return nil
}

// DeleteSession drops all artifacts of a session.
func (f *FileStore) DeleteSession(sessionID string) error {
	dir, err := f.sessionDir(sessionID)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete session artifacts: %w", err)
	}

	return nil
}

func (f *FileStore) sessionDir(sessionID string) (string, error) {
	if !validName(sessionID) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(f.root, sessionID), nil
}

func (f *FileStore) path(sessionID, artifactID string) (string, error) {
	dir, err := f.sessionDir(sessionID)
	if err != nil {
		return "", err
	}

	if !validName(artifactID) {
		return "", fmt.Errorf("invalid artifact id %q", artifactID)
	}

	return filepath.Join(dir, artifactID), nil
}

func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.HasPrefix(s, ".tmp-")
}
