package richtext

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes parsed documents keyed by the text digest.
// Analysis texts are immutable, so entries never go stale.
type Cache struct {
	docs *lru.Cache[[sha256.Size]byte, Document]
}

// NewCache creates a cache holding up to size documents
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = 128
	}
	docs, err := lru.New[[sha256.Size]byte, Document](size)
	if err != nil {
		return nil, err
	}
	return &Cache{docs: docs}, nil
}

// Parse returns the cached document for text, parsing it on a miss.
// Callers get their own copy.
func (c *Cache) Parse(text string) Document {
	key := sha256.Sum256([]byte(text))
	if doc, ok := c.docs.Get(key); ok {
		return doc.clone()
	}
	doc := Parse(text)
	c.docs.Add(key, doc)
	return doc.clone()
}

// Len returns the number of cached documents
func (c *Cache) Len() int {
	return c.docs.Len()
}
