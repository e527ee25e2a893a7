package workspace

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CacheLayer stores resource contents keyed by ResourceKey. Layers are
// stacked in a LayeredCache; the first layer is the cheapest to reach.
type CacheLayer interface {
	Get(key ResourceKey) ([]byte, error)
	Add(key ResourceKey, content []byte) error
	Delete(key ResourceKey) error
	Contains(key ResourceKey) bool
}

// LocalFileCache stores resources as plain files under a root directory.
type LocalFileCache struct {
	root string
}

// NewLocalFileCache returns a cache rooted at root. Directories are created
// lazily on Add.
func NewLocalFileCache(root string) *LocalFileCache {
	return &LocalFileCache{root: root}
}

func (c *LocalFileCache) path(key ResourceKey) string {
	return filepath.Join(c.root, key.LocalPath())
}

func (c *LocalFileCache) Get(key ResourceKey) ([]byte, error) {
	content, err := ioutil.ReadFile(c.path(key))
	return content, errors.Wrapf(err, "reading %s from local cache", key)
}

func (c *LocalFileCache) Add(key ResourceKey, content []byte) error {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, "creating dir for %s", key)
	}
	return errors.Wrapf(ioutil.WriteFile(p, content, 0644), "writing %s to local cache", key)
}

func (c *LocalFileCache) Delete(key ResourceKey) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "deleting %s from local cache", key)
}

func (c *LocalFileCache) Contains(key ResourceKey) bool {
	_, err := os.Stat(c.path(key))
	return err == nil
}

// LayeredCache reads from the nearest layer that has a key and writes through
// to every layer.
type LayeredCache struct {
	layers []CacheLayer
}

func NewLayeredCache(layers ...CacheLayer) *LayeredCache {
	return &LayeredCache{layers: layers}
}

// AddLayer appends a cache layer. Layers are consulted in the order added.
func (c *LayeredCache) AddLayer(l CacheLayer) { c.layers = append(c.layers, l) }

func (c *LayeredCache) NumLayers() int { return len(c.layers) }

func (c *LayeredCache) Get(key ResourceKey) ([]byte, error) {
	for _, l := range c.layers {
		if l.Contains(key) {
			return l.Get(key)
		}
	}
	return nil, errors.Errorf("%s not found in cache", key)
}

func (c *LayeredCache) Add(key ResourceKey, content []byte) error {
	for _, l := range c.layers {
		if err := l.Add(key, content); err != nil {
			return err
		}
	}
	return nil
}

func (c *LayeredCache) Delete(key ResourceKey) error {
	for _, l := range c.layers {
		if err := l.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (c *LayeredCache) Contains(key ResourceKey) bool {
	for _, l := range c.layers {
		if l.Contains(key) {
			return true
		}
	}
	return false
}

// IsOptimallyCached reports whether the first (fastest) layer already holds
// the key. Prefetching skips resources that are optimally cached.
func (c *LayeredCache) IsOptimallyCached(key ResourceKey) bool {
	if len(c.layers) == 0 {
		return false
	}
	return c.layers[0].Contains(key)
}
