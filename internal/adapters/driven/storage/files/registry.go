// Package files persists uploads and vector indexes on the local filesystem,
// one directory per user namespace:
//
//	<root>/uploads/<namespace>/<filename>
//	<root>/indexes/<namespace>/<filename>.idx
//	<root>/locks/<namespace>/<filename>.lock
//
// Writes for the same (namespace, filename) are serialised both within the
// process and across processes; a reader never observes a half-written file.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/scholar/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.IndexRegistry = (*Registry)(nil)

const (
	uploadsDir = "uploads"
	indexesDir = "indexes"
	locksDir   = "locks"
	indexExt   = ".idx"

	lockRetryDelay = 20 * time.Millisecond
)

// Registry is a filesystem-backed IndexRegistry.
type Registry struct {
	root  string
	cache *lru.Cache[string, cachedIndex]

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// New creates a registry rooted at dir. cacheSize bounds the number of
// decoded indexes kept in memory; zero disables caching.
func New(dir string, cacheSize int) (*Registry, error) {
	if dir == "" {
		return nil, fmt.Errorf("registry root is required: %w", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create registry root: %w", err)
	}

	r := &Registry{root: dir, locks: make(map[string]*sync.RWMutex)}
	if cacheSize > 0 {
		cache, err := lru.New[string, cachedIndex](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("init index cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Root returns the registry root directory.
func (r *Registry) Root() string {
	return r.root
}

// SaveUpload stores the uploaded bytes, replacing any previous upload.
func (r *Registry) SaveUpload(ctx context.Context, user domain.UserContext, name string, data []byte) error {
	if err := validate(user, name); err != nil {
		return err
	}
	unlock, err := r.lock(ctx, user, name, true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := writeAtomic(r.uploadPath(user, name), data); err != nil {
		return fmt.Errorf("save upload %s: %w", name, err)
	}
	r.evict(user, name)
	return nil
}

// ReadUpload returns the stored upload.
func (r *Registry) ReadUpload(ctx context.Context, user domain.UserContext, name string) ([]byte, error) {
	if err := validate(user, name); err != nil {
		return nil, err
	}
	unlock, err := r.lock(ctx, user, name, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(r.uploadPath(user, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("upload %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	}
	return data, nil
}

// Save persists entries as the index for name.
func (r *Registry) Save(ctx context.Context, user domain.UserContext, name, checksum string, entries []driven.IndexEntry) error {
	if err := validate(user, name); err != nil {
		return err
	}
	idx, err := flat.Build(checksum, entries)
	if err != nil {
		return err
	}

	unlock, err := r.lock(ctx, user, name, true)
	if err != nil {
		return err
	}
	defer unlock()

	path := r.indexPath(user, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("save index %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := idx.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install index %s: %w", name, err)
	}

	r.evict(user, name)
	logger.Debug("registry: saved %d vectors for %s/%s", idx.Len(), user.Namespace(), name)
	return nil
}

// Load returns the index for name.
//
// An upload that no longer matches the checksum recorded at build time
// makes the index stale and is an error. A missing upload is tolerated
// because the index carries its own chunk text. A cached index is verified
// again whenever the upload's size or modification time changes.
func (r *Registry) Load(ctx context.Context, user domain.UserContext, name string) (driven.VectorIndex, error) {
	if err := validate(user, name); err != nil {
		return nil, err
	}
	key := cacheKey(user, name)
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			stamp, err := r.stampUpload(user, name)
			if err == nil && stamp == cached.upload {
				return cached.idx, nil
			}
			r.cache.Remove(key)
		}
	}

	unlock, err := r.lock(ctx, user, name, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := os.Open(r.indexPath(user, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrIndexNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", name, err)
	}
	idx, err := flat.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	stamp, err := r.stampUpload(user, name)
	if err != nil {
		return nil, fmt.Errorf("stat upload %s: %w", name, err)
	}
	source, err := os.ReadFile(r.uploadPath(user, name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.With("document", name, "namespace", user.Namespace()).
			Warn("registry: source upload missing, serving stored chunk text")
	case err != nil:
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	case domain.Checksum(source) != idx.SourceChecksum():
		return nil, fmt.Errorf("%s: %w", name, domain.ErrStaleIndex)
	}

	if r.cache != nil {
		r.cache.Add(key, cachedIndex{idx: idx, upload: stamp})
	}
	return idx, nil
}

// Delete removes the upload and index for name.
func (r *Registry) Delete(ctx context.Context, user domain.UserContext, name string) error {
	if err := validate(user, name); err != nil {
		return err
	}
	unlock, err := r.lock(ctx, user, name, true)
	if err != nil {
		return err
	}
	defer unlock()

	removed := false
	for _, path := range []string{r.uploadPath(user, name), r.indexPath(user, name)} {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	r.evict(user, name)

	if !removed {
		return fmt.Errorf("%s: %w", name, domain.ErrNotFound)
	}
	return nil
}

// List returns the persisted indexes in the user's namespace, sorted by name.
func (r *Registry) List(_ context.Context, user domain.UserContext) ([]driven.IndexInfo, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	dir := filepath.Join(r.root, indexesDir, user.Namespace())
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	infos := make([]driven.IndexInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), indexExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, driven.IndexInfo{
			Document: strings.TrimSuffix(e.Name(), indexExt),
			Path:     filepath.Join(dir, e.Name()),
			Size:     fi.Size(),
			ModTime:  fi.ModTime().UnixNano(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Document < infos[j].Document })
	return infos, nil
}

// Prune deletes all but the newest keep indexes. Uploads are kept so the
// documents can be reindexed.
func (r *Registry) Prune(ctx context.Context, user domain.UserContext, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep %d: %w", keep, domain.ErrInvalidInput)
	}
	infos, err := r.List(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].ModTime != infos[j].ModTime {
			return infos[i].ModTime > infos[j].ModTime
		}
		return infos[i].Document < infos[j].Document
	})

	var removed []string
	for _, info := range infos[keep:] {
		if err := r.DropIndex(ctx, user, info.Document); err != nil {
			return removed, err
		}
		removed = append(removed, info.Document)
	}
	sort.Strings(removed)
	logger.Info("registry: pruned %d indexes in %s", len(removed), user.Namespace())
	return removed, nil
}

// DropIndex removes the index for name and keeps the upload.
func (r *Registry) DropIndex(ctx context.Context, user domain.UserContext, name string) error {
	if err := validate(user, name); err != nil {
		return err
	}
	unlock, err := r.lock(ctx, user, name, true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(r.indexPath(user, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	r.evict(user, name)
	return nil
}

// cachedIndex is a decoded index with the state of its upload when it was
// verified. A cache hit is only served while the upload still matches.
type cachedIndex struct {
	idx    *flat.Index
	upload uploadStamp
}

type uploadStamp struct {
	missing bool
	size    int64
	modTime int64
}

func (r *Registry) stampUpload(user domain.UserContext, name string) (uploadStamp, error) {
	fi, err := os.Stat(r.uploadPath(user, name))
	if errors.Is(err, fs.ErrNotExist) {
		return uploadStamp{missing: true}, nil
	}
	if err != nil {
		return uploadStamp{}, err
	}
	return uploadStamp{size: fi.Size(), modTime: fi.ModTime().UnixNano()}, nil
}

func (r *Registry) uploadPath(user domain.UserContext, name string) string {
	return filepath.Join(r.root, uploadsDir, user.Namespace(), name)
}

func (r *Registry) indexPath(user domain.UserContext, name string) string {
	return filepath.Join(r.root, indexesDir, user.Namespace(), name+indexExt)
}

func (r *Registry) lockPath(user domain.UserContext, name string) string {
	return filepath.Join(r.root, locksDir, user.Namespace(), name+".lock")
}

func (r *Registry) evict(user domain.UserContext, name string) {
	if r.cache != nil {
		r.cache.Remove(cacheKey(user, name))
	}
}

// lock takes the in-process lock for (user, name), then the matching file
// lock. exclusive selects a write lock.
func (r *Registry) lock(ctx context.Context, user domain.UserContext, name string, exclusive bool) (func(), error) {
	r.mu.Lock()
	key := cacheKey(user, name)
	mu, ok := r.locks[key]
	if !ok {
		mu = &sync.RWMutex{}
		r.locks[key] = mu
	}
	r.mu.Unlock()

	if exclusive {
		mu.Lock()
	} else {
		mu.RLock()
	}
	release := func() {
		if exclusive {
			mu.Unlock()
		} else {
			mu.RUnlock()
		}
	}

	path := r.lockPath(user, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		release()
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !locked {
		release()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Warn("registry: unlock %s: %v", name, err)
		}
		release()
	}, nil
}

func cacheKey(user domain.UserContext, name string) string {
	return user.Namespace() + "/" + name
}

func validate(user domain.UserContext, name string) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return domain.ValidateFilename(name)
}

// writeAtomic writes data to a temporary file beside path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
