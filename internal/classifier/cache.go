package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/leaflens/leaflens/internal/prediction"
)

// Cached memoizes another classifier's vectors by image content. Identical
// uploads (same bytes) are classified once.
type Cached struct {
	inner  prediction.Classifier
	cache  *lru.Cache[string, prediction.Vector]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCached wraps inner with an LRU cache holding up to size vectors.
func NewCached(inner prediction.Classifier, size int) (*Cached, error) {
	cache, err := lru.New[string, prediction.Vector](size)
	if err != nil {
		return nil, fmt.Errorf("creating classifier cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// contentKey hashes the image bytes; the name is not part of the key.
func contentKey(img prediction.Image) string {
	sum := sha256.Sum256(img.Data)
	return hex.EncodeToString(sum[:])
}

// Classify implements prediction.Classifier. Only cache misses are sent to
// the wrapped classifier, in their original relative order.
func (c *Cached) Classify(ctx context.Context, images []prediction.Image) ([]prediction.Vector, error) {
	out := make([]prediction.Vector, len(images))
	keys := make([]string, len(images))

	var missIdx []int
	var missImages []prediction.Image
	for i, img := range images {
		keys[i] = contentKey(img)
		if v, ok := c.cache.Get(keys[i]); ok {
			out[i] = slices.Clone(v)
			c.hits.Add(1)
			continue
		}
		missIdx = append(missIdx, i)
		missImages = append(missImages, img)
	}
	c.misses.Add(uint64(len(missIdx)))

	if len(missImages) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Classify(ctx, missImages)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missImages) {
		return nil, fmt.Errorf("%w: %d images, %d vectors", prediction.ErrBatchSize, len(missImages), len(vecs))
	}

	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Add(keys[i], slices.Clone(vecs[j]))
	}
	return out, nil
}

// Stats returns the cache hit and miss counts since creation.
func (c *Cached) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Len is the number of cached vectors.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Close closes the wrapped classifier if it holds resources.
func (c *Cached) Close() error {
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
