package glue

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelRegistry is a Registry backed by leveldb, one pair of databases per
// category. It has much better write throughput than bolt and is the right
// choice for high-cardinality categories.
type LevelRegistry struct {
	lock    sync.RWMutex
	dirname string
	cats    map[string]*categoryRegistry
}

var _ Registry = (*LevelRegistry)(nil)

type categoryRegistry struct {
	idMap  *leveldb.DB
	keyMap *leveldb.DB
	mu     sync.Mutex
	nextID uint64
}

// NewLevelRegistry opens a registry rooted at dirname, creating category
// databases lazily as they are first used.
func NewLevelRegistry(dirname string, categories ...string) (*LevelRegistry, error) {
	r := &LevelRegistry{
		dirname: dirname,
		cats:    make(map[string]*categoryRegistry),
	}
	for _, cat := range categories {
		cr, err := newCategoryRegistry(dirname, cat)
		if err != nil {
			return nil, errors.Wrap(err, "making category registry")
		}
		r.cats[cat] = cr
	}
	return r, nil
}

func newCategoryRegistry(dirname, category string) (*categoryRegistry, error) {
	if err := os.MkdirAll(dirname, 0700); err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	cr := &categoryRegistry{}
	var err error
	cr.idMap, err = leveldb.OpenFile(filepath.Join(dirname, category+"-id"), &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", filepath.Join(dirname, category+"-id"))
	}
	cr.keyMap, err = leveldb.OpenFile(filepath.Join(dirname, category+"-key"), &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", filepath.Join(dirname, category+"-key"))
	}
	// resume the counter from the highest allocated id
	iter := cr.idMap.NewIterator(nil, nil)
	if iter.Last() {
		cr.nextID = binary.BigEndian.Uint64(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "scanning for max id")
	}
	return cr, nil
}

func (r *LevelRegistry) category(category string) (*categoryRegistry, error) {
	r.lock.RLock()
	if cr, ok := r.cats[category]; ok {
		r.lock.RUnlock()
		return cr, nil
	}
	r.lock.RUnlock()
	r.lock.Lock()
	defer r.lock.Unlock()
	if cr, ok := r.cats[category]; ok {
		return cr, nil
	}
	cr, err := newCategoryRegistry(r.dirname, category)
	if err != nil {
		return nil, errors.Wrap(err, "creating category registry")
	}
	r.cats[category] = cr
	return cr, nil
}

func (r *LevelRegistry) ID(category, key string) (uint64, error) {
	cr, err := r.category(category)
	if err != nil {
		return 0, err
	}
	keyBytes := []byte(key)

	data, err := cr.keyMap.Get(keyBytes, &opt.ReadOptions{})
	if err != nil && err != leveldb.ErrNotFound {
		return 0, errors.Wrap(err, "trying to read key map")
	} else if err == nil {
		return binary.BigEndian.Uint64(data), nil
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()
	// re-read after locking
	data, err = cr.keyMap.Get(keyBytes, &opt.ReadOptions{})
	if err != nil && err != leveldb.ErrNotFound {
		return 0, errors.Wrap(err, "trying to read key map")
	} else if err == nil {
		return binary.BigEndian.Uint64(data), nil
	}

	id := atomic.AddUint64(&cr.nextID, 1)
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)
	if err := cr.idMap.Put(idBytes, keyBytes, &opt.WriteOptions{}); err != nil {
		return 0, errors.Wrap(err, "putting new id into idmap")
	}
	if err := cr.keyMap.Put(keyBytes, idBytes, &opt.WriteOptions{}); err != nil {
		return 0, errors.Wrap(err, "putting new id into keymap")
	}
	return id, nil
}

func (r *LevelRegistry) Key(category string, id uint64) (string, error) {
	cr, err := r.category(category)
	if err != nil {
		return "", err
	}
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)
	data, err := cr.idMap.Get(idBytes, nil)
	if err != nil {
		return "", errors.Wrap(err, "fetching from idMap")
	}
	return string(data), nil
}

// Close closes all of the underlying leveldb instances.
func (r *LevelRegistry) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	errs := make(errorList, 0)
	for cat, cr := range r.cats {
		if err := cr.idMap.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "category %v: closing idMap", cat))
		}
		if err := cr.keyMap.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "category %v: closing keyMap", cat))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type errorList []error

func (errs errorList) Error() string {
	errstrings := make([]string, len(errs))
	for i, err := range errs {
		errstrings[i] = err.Error()
	}
	return strings.Join(errstrings, "; ")
}
