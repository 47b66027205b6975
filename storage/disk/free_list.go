package disk

// Push does not check whether offset is already on the list.
func (fl *FreeList) Push(offset int64) {
	fl.offsets = append(fl.offsets, offset)
}

// Pop returns the most recently freed offset. ok is false on an empty list;
// callers then allocate at the end of the file.
func (fl *FreeList) Pop() (offset int64, ok bool) {
	if len(fl.offsets) == 0 {
		return INVALID_OFFSET, false
	}

	last := len(fl.offsets) - 1
	offset = fl.offsets[last]
	fl.offsets = fl.offsets[:last]

	return offset, true
}

func (fl *FreeList) Len() int {
	return len(fl.offsets)
}

// FreeList is a LIFO stack of freed page offsets.
type FreeList struct {
	offsets []int64
}
