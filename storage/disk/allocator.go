package disk

import (
	"go.uber.org/zap"
)

const INVALID_OFFSET int64 = -1

// NewAllocator hands out page offsets on ch. end is the current end of the
// page file; new pages are appended there once the free lists are empty.
func NewAllocator(ch *Channel, end int64, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Allocator{
		ch:        ch,
		end:       end,
		freeSlots: map[int]*FreeList{},
		logger:    logger.Named("allocator"),
	}
}

// Allocate returns the offset of a region of length bytes. A freed region of
// the same length is reused before the file is extended.
func (a *Allocator) Allocate(length int) (int64, error) {
	if fl, ok := a.freeSlots[length]; ok {
		if offset, ok := fl.Pop(); ok {
			a.freeBytes -= int64(length)
			a.logger.Debug("reusing freed page", zap.Int64("offset", offset), zap.Int("length", length))
			return offset, nil
		}
	}

	offset := a.end
	newEnd := a.end + int64(length)
	if err := a.ch.Truncate(newEnd); err != nil {
		return INVALID_OFFSET, err
	}
	a.end = newEnd

	a.logger.Debug("extended page file", zap.Int64("offset", offset), zap.Int("length", length))
	return offset, nil
}

// Free returns a region to the allocator. The bytes on disk are left as they
// are until the region is handed out again.
func (a *Allocator) Free(offset int64, length int) {
	fl, ok := a.freeSlots[length]
	if !ok {
		fl = &FreeList{}
		a.freeSlots[length] = fl
	}

	fl.Push(offset)
	a.freeBytes += int64(length)
}

// End is the offset the next extending allocation will return.
func (a *Allocator) End() int64 {
	return a.end
}

// Orphaned reports bytes freed but not reused. Free lists are not persisted,
// so this space is lost when the index is closed.
func (a *Allocator) Orphaned() int64 {
	return a.freeBytes
}

type Allocator struct {
	ch        *Channel
	end       int64
	freeSlots map[int]*FreeList
	freeBytes int64
	logger    *zap.Logger
}
