package loadworker

import (
	"context"
	"fmt"
	"sync"

	"github.com/framecast/videoengine/internal/metastore"
	"github.com/framecast/videoengine/internal/storage"
)

// videoIndexEntry is a cached {width, height, file handle, file size,
// keyframe_positions, keyframe_byte_offsets} for one video item.
// Positions and byte offsets already carry the frame_count/file_size
// sentinel tails needed for work-unit boundary arithmetic.
type videoIndexEntry struct {
	width, height       int
	fileSize            int64
	keyframePositions   []int64
	keyframeByteOffsets []int64
	file                storage.RandomReadFile
}

func (e *videoIndexEntry) close() {
	if e.file != nil {
		_ = e.file.Close()
	}
}

// videoIndexKey is scoped to (column, item) because the cache is cleared
// in full whenever the target table changes; a small hash table with
// full-invalidation is simpler than an LRU given that access pattern.
type videoIndexKey struct {
	columnID, itemID int
}

// videoIndexCache is a per-load-thread cache; it is never shared across
// load threads, but within one thread concurrent columns of the same
// sample window (see loadColumns) may call get simultaneously, so entries
// is guarded by mu.
type videoIndexCache struct {
	mu      sync.Mutex
	entries map[videoIndexKey]*videoIndexEntry
}

func newVideoIndexCache() *videoIndexCache {
	return &videoIndexCache{entries: make(map[videoIndexKey]*videoIndexEntry)}
}

func (c *videoIndexCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.close()
	}
	c.entries = make(map[videoIndexKey]*videoIndexEntry)
}

func (c *videoIndexCache) get(ctx context.Context, backend storage.Backend, meta *metastore.Store, tableID, columnID, itemID int) (*videoIndexEntry, error) {
	key := videoIndexKey{columnID: columnID, itemID: itemID}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	f, err := backend.OpenRead(metastore.ItemPath(tableID, columnID, itemID))
	if err != nil {
		return nil, fmt.Errorf("loadworker: open video item (table=%d column=%d item=%d): %w", tableID, columnID, itemID, err)
	}
	size, err := f.Size()
	if err != nil {
		f.Close()
		return nil, err
	}

	vd, err := meta.ReadVideoDescriptor(ctx, tableID, columnID, itemID)
	if err != nil {
		f.Close()
		return nil, err
	}

	positions := append(append([]int64(nil), vd.KeyframePositions...), vd.FrameCount)
	byteOffsets := append(append([]int64(nil), vd.KeyframeByteOffsets...), size)

	e := &videoIndexEntry{
		width:               vd.Width,
		height:              vd.Height,
		fileSize:            size,
		keyframePositions:   positions,
		keyframeByteOffsets: byteOffsets,
		file:                f,
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		c.mu.Unlock()
		f.Close()
		return existing, nil
	}
	c.entries[key] = e
	c.mu.Unlock()
	return e, nil
}
