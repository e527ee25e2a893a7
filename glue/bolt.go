package glue

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var (
	idBucket  = []byte("idKey")
	keyBucket = []byte("valKey")
)

// BoltRegistry is a Registry backed by a single boltdb file. Each category
// gets a nested bucket in each direction, and new IDs come from the id
// bucket's sequence so they survive restarts.
type BoltRegistry struct {
	db *bolt.DB
}

var _ Registry = (*BoltRegistry)(nil)

// NewBoltRegistry opens or creates a registry at filename.
func NewBoltRegistry(filename string) (*BoltRegistry, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(idBucket); err != nil {
			return errors.Wrap(err, "creating idKey bucket")
		}
		if _, err := tx.CreateBucketIfNotExists(keyBucket); err != nil {
			return errors.Wrap(err, "creating valKey bucket")
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &BoltRegistry{db: db}, nil
}

func (r *BoltRegistry) ID(category, key string) (uint64, error) {
	keyBytes := []byte(key)

	// fast path, the key is usually already mapped
	var ret []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		if ckb := tx.Bucket(keyBucket).Bucket([]byte(category)); ckb != nil {
			ret = ckb.Get(keyBytes)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "reading key map")
	}
	if len(ret) == 8 {
		return binary.BigEndian.Uint64(ret), nil
	}

	var id uint64
	err = r.db.Batch(func(tx *bolt.Tx) error {
		cib, err := tx.Bucket(idBucket).CreateBucketIfNotExists([]byte(category))
		if err != nil {
			return errors.Wrap(err, "adding category to id bucket")
		}
		ckb, err := tx.Bucket(keyBucket).CreateBucketIfNotExists([]byte(category))
		if err != nil {
			return errors.Wrap(err, "adding category to key bucket")
		}
		// re-check under the write lock
		if ret := ckb.Get(keyBytes); len(ret) == 8 {
			id = binary.BigEndian.Uint64(ret)
			return nil
		}
		id, err = cib.NextSequence()
		if err != nil {
			return err
		}
		idBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idBytes, id)
		if err := cib.Put(idBytes, keyBytes); err != nil {
			return errors.Wrap(err, "inserting into idKey bucket")
		}
		if err := ckb.Put(keyBytes, idBytes); err != nil {
			return errors.Wrap(err, "inserting into valKey bucket")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *BoltRegistry) Key(category string, id uint64) (string, error) {
	var key []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		cib := tx.Bucket(idBucket).Bucket([]byte(category))
		if cib == nil {
			return errors.Errorf("unknown category %q", category)
		}
		idBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idBytes, id)
		key = cib.Get(idBytes)
		return nil
	})
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", errors.Errorf("no key for id %d in category %q", id, category)
	}
	return string(key), nil
}

// Close syncs and closes the underlying boltdb.
func (r *BoltRegistry) Close() error {
	if err := r.db.Sync(); err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return r.db.Close()
}
