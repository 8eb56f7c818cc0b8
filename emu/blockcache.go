package emu

import "github.com/sarchlab/vcore/tcg"

type blockKey struct {
	pc    uint64
	flags uint32
}

// BlockCache holds translated blocks keyed by guest pc and hidden flags.
// A block translated under one set of flags is never reused under another.
type BlockCache struct {
	blocks     map[blockKey]*tcg.Block
	generation uint64

	hits, misses uint64
}

// NewBlockCache creates an empty BlockCache.
func NewBlockCache() *BlockCache {
	return &BlockCache{blocks: make(map[blockKey]*tcg.Block)}
}

// Get returns the block for (pc, flags) if one is cached.
func (c *BlockCache) Get(pc uint64, flags uint32) (*tcg.Block, bool) {
	b, ok := c.blocks[blockKey{pc, flags}]
	if ok {
		c.hits++
	} else {
		c.misses++
	}

	return b, ok
}

// Put caches b under its own key.
func (c *BlockCache) Put(b *tcg.Block) {
	c.PutKey(b.PC, b.Flags, b)
}

// PutKey caches b under (pc, flags), the key it was translated for.
func (c *BlockCache) PutKey(pc uint64, flags uint32, b *tcg.Block) {
	c.blocks[blockKey{pc, flags}] = b
}

// Sync drops every block when generation differs from the one the cache
// was filled under, and reports whether it did.
func (c *BlockCache) Sync(generation uint64) bool {
	if generation == c.generation {
		return false
	}

	c.generation = generation
	c.Clear()

	return true
}

// Clear drops every cached block.
func (c *BlockCache) Clear() {
	clear(c.blocks)
}

// Len returns the number of cached blocks.
func (c *BlockCache) Len() int { return len(c.blocks) }

// Stats returns the hit and miss counts.
func (c *BlockCache) Stats() (hits, misses uint64) { return c.hits, c.misses }
