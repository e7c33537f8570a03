package blobstore

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/santhoshtr/topictrends/codec"
	"github.com/santhoshtr/topictrends/corpus"
	"github.com/santhoshtr/topictrends/resource"
)

const (
	currentName = "CURRENT"

	// DefaultMirrorConcurrency bounds parallel table transfers.
	DefaultMirrorConcurrency = 4
)

// Mirror copies a wiki's snapshot tree between a remote BlobStore and
// a local DATA_DIR. Sync downloads, Push uploads; both skip files that
// already exist with the expected size and both write the CURRENT
// pointer last, so a crash mid-transfer never leaves a snapshot that
// points at missing tables.
type Mirror struct {
	remote      BlobStore
	dataDir     string
	rc          *resource.Controller
	concurrency int
	pageviews   bool
	logger      *slog.Logger
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithMirrorController bounds transfer throughput with rc's IO limit.
func WithMirrorController(rc *resource.Controller) MirrorOption {
	return func(m *Mirror) { m.rc = rc }
}

// WithMirrorConcurrency sets how many files transfer in parallel.
func WithMirrorConcurrency(n int) MirrorOption {
	return func(m *Mirror) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithPageviewBackfill also transfers the wiki's pageview day files.
// Off by default: day files are numerous and the engine zero-fills
// missing days, so the snapshot itself is enough to serve queries.
func WithPageviewBackfill(enabled bool) MirrorOption {
	return func(m *Mirror) { m.pageviews = enabled }
}

// WithMirrorLogger sets the logger. Defaults to a no-op logger.
func WithMirrorLogger(logger *slog.Logger) MirrorOption {
	return func(m *Mirror) { m.logger = logger }
}

// NewMirror creates a Mirror between remote and the local dataDir.
func NewMirror(remote BlobStore, dataDir string, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		remote:      remote,
		dataDir:     dataDir,
		concurrency: DefaultMirrorConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// MirrorStats summarizes one Sync or Push pass.
type MirrorStats struct {
	Transferred int   // files copied
	Skipped     int   // files already present with matching size
	Bytes       int64 // bytes copied
}

// Sync downloads the wiki's current snapshot from the remote store
// into DATA_DIR. Tables whose local size already matches the manifest
// are skipped; downloaded tables are verified against the manifest
// checksum. The local CURRENT pointer is flipped only after every
// table is in place.
func (m *Mirror) Sync(ctx context.Context, wiki string) (MirrorStats, error) {
	if err := ctx.Err(); err != nil {
		return MirrorStats{}, err
	}

	start := time.Now()
	snapshots := path.Join(wiki, "snapshots")

	current, err := ReadAll(ctx, m.remote, path.Join(snapshots, currentName))
	if err != nil {
		return MirrorStats{}, fmt.Errorf("blobstore: read remote CURRENT for %s: %w", wiki, err)
	}
	manifestName := strings.TrimSpace(string(current))

	manifestData, err := ReadAll(ctx, m.remote, path.Join(snapshots, manifestName))
	if err != nil {
		return MirrorStats{}, fmt.Errorf("blobstore: read remote manifest %s: %w", manifestName, err)
	}

	var manifest corpus.Manifest
	if err := codec.Default.Unmarshal(manifestData, &manifest); err != nil {
		return MirrorStats{}, fmt.Errorf("blobstore: decode remote manifest %s: %w", manifestName, err)
	}

	localDir := filepath.Join(m.dataDir, wiki, "snapshots")

	var transferred, skipped, copied atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, t := range manifest.Tables {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			local := filepath.Join(localDir, filepath.FromSlash(t.Path))
			if fi, err := os.Stat(local); err == nil && fi.Size() == t.Bytes {
				skipped.Add(1)
				return nil
			}

			name := path.Join(snapshots, t.Path)
			blob, err := m.remote.Open(gctx, name)
			if err != nil {
				return fmt.Errorf("blobstore: open remote %s: %w", name, err)
			}
			if blob.Size() != t.Bytes {
				blob.Close()
				return fmt.Errorf("blobstore: remote %s is %d bytes, manifest says %d", name, blob.Size(), t.Bytes)
			}

			n, err := m.copyBlob(gctx, blob, local, t.Checksum)
			blob.Close()
			if err != nil {
				return err
			}

			transferred.Add(1)
			copied.Add(n)
			m.logger.Debug("table downloaded", slog.String("wiki", wiki), slog.String("table", t.Name), slog.Int64("bytes", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats(&transferred, &skipped, &copied), err
	}

	if err := writeFileAtomic(filepath.Join(localDir, manifestName), manifestData); err != nil {
		return stats(&transferred, &skipped, &copied), err
	}
	if err := writeFileAtomic(filepath.Join(localDir, currentName), []byte(manifestName)); err != nil {
		return stats(&transferred, &skipped, &copied), err
	}

	if m.pageviews {
		if err := m.syncPageviews(ctx, wiki, &transferred, &skipped, &copied); err != nil {
			return stats(&transferred, &skipped, &copied), err
		}
	}

	st := stats(&transferred, &skipped, &copied)
	m.logger.Info("snapshot mirrored",
		slog.String("wiki", wiki),
		slog.String("manifest", manifestName),
		slog.Int("transferred", st.Transferred),
		slog.Int("skipped", st.Skipped),
		slog.Int64("bytes", st.Bytes),
		slog.Duration("duration", time.Since(start)),
	)

	return st, nil
}

func (m *Mirror) syncPageviews(ctx context.Context, wiki string, transferred, skipped, copied *atomic.Int64) error {
	prefix := wiki + "/pageviews/"
	names, err := m.remote.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("blobstore: list remote pageviews for %s: %w", wiki, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			blob, err := m.remote.Open(gctx, name)
			if err != nil {
				return fmt.Errorf("blobstore: open remote %s: %w", name, err)
			}

			local := filepath.Join(m.dataDir, filepath.FromSlash(name))
			if fi, err := os.Stat(local); err == nil && fi.Size() == blob.Size() {
				blob.Close()
				skipped.Add(1)
				return nil
			}

			n, err := m.copyBlob(gctx, blob, local, 0)
			blob.Close()
			if err != nil {
				return err
			}

			transferred.Add(1)
			copied.Add(n)
			return nil
		})
	}
	return g.Wait()
}

// Push uploads the wiki's current local snapshot to the remote store,
// the inverse of Sync. The ETL host pushes, the serving fleet syncs.
func (m *Mirror) Push(ctx context.Context, wiki string) (MirrorStats, error) {
	if err := ctx.Err(); err != nil {
		return MirrorStats{}, err
	}

	start := time.Now()
	localDir := filepath.Join(m.dataDir, wiki, "snapshots")

	current, err := os.ReadFile(filepath.Join(localDir, currentName))
	if err != nil {
		return MirrorStats{}, fmt.Errorf("blobstore: read local CURRENT for %s: %w", wiki, err)
	}
	manifestName := strings.TrimSpace(string(current))

	manifestData, err := os.ReadFile(filepath.Join(localDir, manifestName))
	if err != nil {
		return MirrorStats{}, fmt.Errorf("blobstore: read local manifest %s: %w", manifestName, err)
	}

	var manifest corpus.Manifest
	if err := codec.Default.Unmarshal(manifestData, &manifest); err != nil {
		return MirrorStats{}, fmt.Errorf("blobstore: decode local manifest %s: %w", manifestName, err)
	}

	snapshots := path.Join(wiki, "snapshots")

	var transferred, skipped, copied atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, t := range manifest.Tables {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			name := path.Join(snapshots, t.Path)
			match, err := m.remoteSizeMatches(gctx, name, t.Bytes)
			if err != nil {
				return err
			}
			if match {
				skipped.Add(1)
				return nil
			}

			n, err := m.upload(gctx, filepath.Join(localDir, filepath.FromSlash(t.Path)), name)
			if err != nil {
				return err
			}

			transferred.Add(1)
			copied.Add(n)
			m.logger.Debug("table uploaded", slog.String("wiki", wiki), slog.String("table", t.Name), slog.Int64("bytes", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats(&transferred, &skipped, &copied), err
	}

	if err := Put(ctx, m.remote, path.Join(snapshots, manifestName), manifestData); err != nil {
		return stats(&transferred, &skipped, &copied), err
	}
	if err := Put(ctx, m.remote, path.Join(snapshots, currentName), []byte(manifestName)); err != nil {
		return stats(&transferred, &skipped, &copied), err
	}

	if m.pageviews {
		if err := m.pushPageviews(ctx, wiki, &transferred, &skipped, &copied); err != nil {
			return stats(&transferred, &skipped, &copied), err
		}
	}

	st := stats(&transferred, &skipped, &copied)
	m.logger.Info("snapshot pushed",
		slog.String("wiki", wiki),
		slog.String("manifest", manifestName),
		slog.Int("transferred", st.Transferred),
		slog.Int("skipped", st.Skipped),
		slog.Int64("bytes", st.Bytes),
		slog.Duration("duration", time.Since(start)),
	)

	return st, nil
}

func (m *Mirror) pushPageviews(ctx context.Context, wiki string, transferred, skipped, copied *atomic.Int64) error {
	root := filepath.Join(m.dataDir, wiki, "pageviews")

	var locals []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			locals = append(locals, p)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, local := range locals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(m.dataDir, local)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)

			fi, err := os.Stat(local)
			if err != nil {
				return err
			}
			match, err := m.remoteSizeMatches(gctx, name, fi.Size())
			if err != nil {
				return err
			}
			if match {
				skipped.Add(1)
				return nil
			}

			n, err := m.upload(gctx, local, name)
			if err != nil {
				return err
			}

			transferred.Add(1)
			copied.Add(n)
			return nil
		})
	}
	return g.Wait()
}

// copyBlob streams blob into local through the IO rate limit, staging
// in a temp file and renaming into place. A non-zero sum is verified
// as CRC32 (IEEE) over the copied bytes.
func (m *Mirror) copyBlob(ctx context.Context, blob Blob, local string, sum uint32) (int64, error) {
	r, err := blob.ReadRange(ctx, 0, -1)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(filepath.Dir(local), filepath.Base(local)+".tmp-*")
	if err != nil {
		return 0, err
	}

	crc := crc32.NewIEEE()
	n, err := io.Copy(io.MultiWriter(f, crc), resource.NewRateLimitedReader(r, m.rc, ctx))
	if err == nil && sum != 0 && crc.Sum32() != sum {
		err = fmt.Errorf("blobstore: checksum mismatch downloading %s", filepath.Base(local))
	}
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return 0, err
	}
	if err := os.Rename(f.Name(), local); err != nil {
		os.Remove(f.Name())
		return 0, err
	}

	return n, nil
}

func (m *Mirror) upload(ctx context.Context, local, name string) (int64, error) {
	f, err := os.Open(local)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w, err := m.remote.Create(ctx, name)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resource.NewRateLimitedReader(f, m.rc, ctx))
	if err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return 0, err
	}

	return n, w.Close()
}

func (m *Mirror) remoteSizeMatches(ctx context.Context, name string, size int64) (bool, error) {
	blob, err := m.remote.Open(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("blobstore: stat remote %s: %w", name, err)
	}
	defer blob.Close()
	return blob.Size() == size, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

func stats(transferred, skipped, copied *atomic.Int64) MirrorStats {
	return MirrorStats{
		Transferred: int(transferred.Load()),
		Skipped:     int(skipped.Load()),
		Bytes:       copied.Load(),
	}
}
