package cache

import (
	"time"

	"mindlog/internal/graph"

	lru "github.com/hashicorp/golang-lru/v2"
)

type graphKey struct {
	logID     uint
	updatedAt int64
}

// GraphCache memoizes built graphs per log revision. A log's UpdatedAt is
// part of the key, so edits never serve an old layout.
type GraphCache struct {
	lru *lru.Cache[graphKey, graph.Graph]
}

// NewGraphCache returns a cache holding up to size graphs.
func NewGraphCache(size int) (*GraphCache, error) {
	if size <= 0 {
		size = 1
	}
	c, err := lru.New[graphKey, graph.Graph](size)
	if err != nil {
		return nil, err
	}
	return &GraphCache{lru: c}, nil
}

func (c *GraphCache) Get(logID uint, updatedAt time.Time) (graph.Graph, bool) {
	return c.lru.Get(graphKey{logID: logID, updatedAt: updatedAt.UnixNano()})
}

func (c *GraphCache) Add(logID uint, updatedAt time.Time, g graph.Graph) {
	c.lru.Add(graphKey{logID: logID, updatedAt: updatedAt.UnixNano()}, g)
}

// Forget drops every cached revision of logID.
func (c *GraphCache) Forget(logID uint) {
	for _, k := range c.lru.Keys() {
		if k.logID == logID {
			c.lru.Remove(k)
		}
	}
}

func (c *GraphCache) Len() int {
	return c.lru.Len()
}
