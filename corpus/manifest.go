package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhoshtr/topictrends/codec"
	"github.com/santhoshtr/topictrends/core"
	"github.com/santhoshtr/topictrends/internal/fs"
)

const (
	manifestPrefix  = "MANIFEST"
	currentName     = "CURRENT"
	manifestVersion = 1
)

// Manifest describes one topology snapshot of a wiki: which table files
// belong to it, how many rows each carries and their whole-file checksums.
// The ETL writes a new manifest per snapshot; the loader opens whatever
// CURRENT points at.
type Manifest struct {
	Version  int         `json:"version"`
	ID       uint64      `json:"id"`
	Wiki     string      `json:"wiki"`
	Tag      string      `json:"tag"`
	DumpDate core.Date   `json:"dump_date"`
	Tables   []TableInfo `json:"tables"`
}

// TableInfo describes a single table file.
type TableInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"` // relative to the wiki snapshots directory
	Rows     uint64 `json:"rows"`
	Bytes    int64  `json:"bytes"`
	Checksum uint32 `json:"checksum"` // CRC32 (IEEE) over the whole file
}

// Table returns the entry with the given name.
func (m *Manifest) Table(name string) (TableInfo, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableInfo{}, false
}

// ManifestStore manages the manifest files and the CURRENT pointer of one
// wiki snapshots directory.
type ManifestStore struct {
	fs  fs.FileSystem
	dir string
	mu  sync.Mutex
}

// NewManifestStore creates a store for dir, typically
// "<DATA_DIR>/<wiki>/snapshots".
func NewManifestStore(fsys fs.FileSystem, dir string) *ManifestStore {
	return &ManifestStore{fs: fsys, dir: dir}
}

// Load reads the manifest named by CURRENT. A missing CURRENT pointer
// yields ErrNoSnapshot.
func (s *ManifestStore) Load() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := fs.ReadFile(s.fs, filepath.Join(s.dir, currentName))
	if os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(s.dir, string(content))
	data, err := fs.ReadFile(s.fs, manifestPath)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", manifestPath, err)
	}

	if m.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, manifestVersion)
	}

	return &m, nil
}

// Save atomically writes a new manifest and repoints CURRENT at it. Both
// writes go through a temp file, rename and directory sync so a crash
// leaves either the old or the new snapshot current, never a torn one.
func (s *ManifestStore) Save(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	m.Version = manifestVersion
	m.ID++

	data, err := codec.Default.Marshal(m)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s-%06d.json", manifestPrefix, m.ID)
	if err := s.writeAtomic(filename, data); err != nil {
		return err
	}

	return s.writeAtomic(currentName, []byte(filename))
}

func (s *ManifestStore) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmpPath := path + ".tmp"

	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}

	return s.syncDir()
}

func (s *ManifestStore) syncDir() error {
	f, err := s.fs.OpenFile(s.dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
