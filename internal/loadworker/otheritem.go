package loadworker

import (
	"encoding/binary"
	"fmt"

	"github.com/framecast/videoengine/internal/storage"
)

// otherItemHeader is an Other column item file's `[u64 num_rows][i64
// row_sizes[num_rows]]` header.
type otherItemHeader struct {
	numRows    int64
	rowSizes   []int64
	headerSize int64
}

func readOtherItemHeader(f storage.RandomReadFile) (*otherItemHeader, error) {
	var numRowsBuf [8]byte
	if err := f.ReadAt(numRowsBuf[:], 0); err != nil {
		return nil, fmt.Errorf("loadworker: read num_rows header: %w", err)
	}
	numRows := int64(binary.BigEndian.Uint64(numRowsBuf[:]))

	sizesBuf := make([]byte, numRows*8)
	if numRows > 0 {
		if err := f.ReadAt(sizesBuf, 8); err != nil {
			return nil, fmt.Errorf("loadworker: read row_sizes header: %w", err)
		}
	}
	rowSizes := make([]int64, numRows)
	for i := range rowSizes {
		rowSizes[i] = int64(binary.BigEndian.Uint64(sizesBuf[i*8 : i*8+8]))
	}

	return &otherItemHeader{
		numRows:    numRows,
		rowSizes:   rowSizes,
		headerSize: 8 + numRows*8,
	}, nil
}

// readOtherItemRows reads, in one I/O, the contiguous span of row blobs
// covering [itemStart, itemEnd), then slices out exactly the blobs named
// by validOffsets (a subset of that span), in order.
func readOtherItemRows(f storage.RandomReadFile, h *otherItemHeader, itemStart, itemEnd int64, validOffsets []int64) ([][]byte, error) {
	var startOffset, spanLen int64
	for i := int64(0); i < itemStart; i++ {
		startOffset += h.rowSizes[i]
	}
	for i := itemStart; i < itemEnd; i++ {
		spanLen += h.rowSizes[i]
	}

	chunk := make([]byte, spanLen)
	if spanLen > 0 {
		if err := f.ReadAt(chunk, h.headerSize+startOffset); err != nil {
			return nil, fmt.Errorf("loadworker: read row span [%d,%d): %w", itemStart, itemEnd, err)
		}
	}

	// offsetWithinChunk[r] is the byte offset, relative to chunk, of row r.
	offsetWithinChunk := make(map[int64]int64, itemEnd-itemStart)
	var cursor int64
	for r := itemStart; r < itemEnd; r++ {
		offsetWithinChunk[r] = cursor
		cursor += h.rowSizes[r]
	}

	rows := make([][]byte, 0, len(validOffsets))
	for _, r := range validOffsets {
		start, ok := offsetWithinChunk[r]
		if !ok {
			return nil, fmt.Errorf("loadworker: requested row %d outside read span [%d,%d)", r, itemStart, itemEnd)
		}
		rows = append(rows, chunk[start:start+h.rowSizes[r]])
	}
	return rows, nil
}
