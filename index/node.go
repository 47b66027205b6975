package index

import (
	"go.uber.org/zap"

	"github.com/jobala/rtstore/storage/disk"
	"github.com/jobala/rtstore/util"
)

const INVALID_OFFSET = disk.INVALID_OFFSET

// NewNode returns an empty node with no page. It gets one on its first Save.
func NewNode(p *Params, isLeaf bool) *Node {
	return &Node{
		params:       p,
		offset:       INVALID_OFFSET,
		parentOffset: INVALID_OFFSET,
		leaf:         isLeaf,
		entries:      make([]Entry, 0, p.maxEntries),
	}
}

// LoadNode reads the node stored at offset. Callers normally go through
// Params.GetNode so the node ends up in the cache.
func LoadNode(p *Params, offset int64) (*Node, error) {
	buf := make([]byte, PageLen(p.maxEntries))
	if err := p.ch.ReadAt(buf, offset); err != nil {
		return nil, err
	}

	isLeaf, parentOffset, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}

	entries, err := DecodeEntries(buf, p.maxEntries, isLeaf)
	if err != nil {
		return nil, err
	}

	if isLeaf {
		width := p.schema.RecordWidth()
		block := make([]byte, LeafBlockLen(p.maxEntries, p.schema))
		if err := p.ch.ReadAt(block, offset+int64(len(buf))); err != nil {
			return nil, err
		}

		for i := range entries {
			rec, err := DecodeLeafRecord(block[i*width:(i+1)*width], p.schema)
			if err != nil {
				return nil, err
			}
			entries[i].Record = rec
		}
	}

	p.logger.Debug("loaded node",
		zap.Int64("offset", offset),
		zap.Bool("leaf", isLeaf),
		zap.Int("entries", len(entries)),
	)

	return &Node{
		params:       p,
		offset:       offset,
		parentOffset: parentOffset,
		leaf:         isLeaf,
		entries:      entries,
	}, nil
}

// Flush writes the node back to its page if it is dirty. The page and, for
// leaves, the record block go out in a single write.
func (n *Node) Flush() error {
	if n.freed || !n.dirty {
		return nil
	}
	if n.offset == INVALID_OFFSET {
		return util.NotAllocated("flush of a node that was never saved")
	}

	buf, err := n.encode()
	if err != nil {
		return err
	}

	if err := n.params.ch.WriteAt(buf, n.offset); err != nil {
		return err
	}

	n.dirty = false
	n.params.logger.Debug("flushed node", zap.Int64("offset", n.offset), zap.Int("bytes", len(buf)))
	return nil
}

// Save gives a new node a page, reusing a freed one of the same size when
// possible, marks the node dirty and registers it in the cache. Children are
// not re-parented here; see ReparentChildren.
func (n *Node) Save() error {
	if n.freed {
		return util.Freed("save of a freed node")
	}

	if n.offset == INVALID_OFFSET {
		offset, err := n.params.alloc.Allocate(n.pageLen())
		if err != nil {
			return err
		}
		n.offset = offset
	}

	n.dirty = true
	return n.params.cache.Put(n)
}

// Free drops the node from the cache and hands its page back to the
// allocator. The page bytes are not cleared.
func (n *Node) Free() {
	if n.freed {
		return
	}

	if n.offset != INVALID_OFFSET {
		n.params.cache.Remove(n.offset)
		n.params.alloc.Free(n.offset, n.pageLen())
	}

	n.freed = true
	n.dirty = false
}

// ReparentChildren points every cached child of n back at n and returns how
// many children changed. Children that are not cached are left alone. It is
// meant to run after an internal node got its page or its entries changed.
func (n *Node) ReparentChildren() int {
	if n.leaf || n.offset == INVALID_OFFSET {
		return 0
	}

	updated := 0
	for _, e := range n.entries {
		child, ok := n.params.cache.Peek(e.Child)
		if !ok || child.parentOffset == n.offset {
			continue
		}

		child.parentOffset = n.offset
		child.dirty = true
		updated++
	}

	n.childrenChanged = false
	return updated
}

// SetParent records parent's page as this node's parent, or marks the node
// as root when parent is nil. The parent must have been saved.
func (n *Node) SetParent(parent *Node) error {
	if n.freed {
		return util.Freed("mutation of a freed node")
	}

	if parent == nil {
		n.parentOffset = INVALID_OFFSET
	} else {
		if parent.offset == INVALID_OFFSET {
			return util.NotAllocated("parent of a node must be saved before it is linked")
		}
		n.parentOffset = parent.offset
	}
	n.dirty = true
	return nil
}

// EntryForChild finds the entry pointing at the child page at childOffset.
func (n *Node) EntryForChild(childOffset int64) (Entry, bool) {
	idx := n.IndexOfChild(childOffset)
	if idx < 0 {
		return Entry{}, false
	}
	return n.entries[idx], true
}

func (n *Node) IndexOfChild(childOffset int64) int {
	if n.leaf {
		return -1
	}

	for i, e := range n.entries {
		if e.Child == childOffset {
			return i
		}
	}
	return -1
}

func (n *Node) AddEntry(e Entry) error {
	if err := n.checkMutable(e); err != nil {
		return err
	}
	if len(n.entries) >= n.params.maxEntries {
		return util.InvalidEntry("node at offset %d is full (%d entries)", n.offset, n.params.maxEntries)
	}

	n.entries = append(n.entries, n.normalize(e))
	n.changed()
	return nil
}

func (n *Node) SetEntry(idx int, e Entry) error {
	if err := n.checkMutable(e); err != nil {
		return err
	}
	if idx < 0 || idx >= len(n.entries) {
		return util.InvalidEntry("entry index %d out of range [0, %d)", idx, len(n.entries))
	}

	n.entries[idx] = n.normalize(e)
	n.changed()
	return nil
}

func (n *Node) RemoveEntry(idx int) error {
	if n.freed {
		return util.Freed("mutation of a freed node")
	}
	if idx < 0 || idx >= len(n.entries) {
		return util.InvalidEntry("entry index %d out of range [0, %d)", idx, len(n.entries))
	}

	n.entries = append(n.entries[:idx], n.entries[idx+1:]...)
	n.changed()
	return nil
}

// SetEntries replaces all entries, as done after a split.
func (n *Node) SetEntries(entries []Entry) error {
	if n.freed {
		return util.Freed("mutation of a freed node")
	}
	if len(entries) > n.params.maxEntries {
		return util.InvalidEntry("%d entries exceed fan-out %d", len(entries), n.params.maxEntries)
	}
	for _, e := range entries {
		if err := n.checkMutable(e); err != nil {
			return err
		}
	}

	n.entries = n.entries[:0]
	for _, e := range entries {
		n.entries = append(n.entries, n.normalize(e))
	}
	n.changed()
	return nil
}

func (n *Node) MarkDirty() {
	if !n.freed {
		n.dirty = true
	}
}

// Entries returns a copy of the node's entries; use the mutators to change
// them.
func (n *Node) Entries() []Entry {
	res := make([]Entry, len(n.entries))
	copy(res, n.entries)
	return res
}

func (n *Node) Entry(idx int) Entry {
	return n.entries[idx]
}

// Bounds is the union of all entry envelopes.
func (n *Node) Bounds() (Envelope, bool) {
	if len(n.entries) == 0 {
		return Envelope{}, false
	}

	res := n.entries[0].Bounds
	for _, e := range n.entries[1:] {
		res = res.Union(e.Bounds)
	}
	return res, true
}

func (n *Node) Len() int { return len(n.entries) }
func (n *Node) Offset() int64 { return n.offset }
func (n *Node) ParentOffset() int64 { return n.parentOffset }
func (n *Node) IsLeaf() bool { return n.leaf }
func (n *Node) IsRoot() bool { return n.parentOffset == INVALID_OFFSET }
func (n *Node) IsDirty() bool { return n.dirty }
func (n *Node) IsFreed() bool { return n.freed }
func (n *Node) ChildrenChanged() bool { return n.childrenChanged }

func (n *Node) pageLen() int {
	if n.leaf {
		return PageLen(n.params.maxEntries) + LeafBlockLen(n.params.maxEntries, n.params.schema)
	}
	return PageLen(n.params.maxEntries)
}

func (n *Node) encode() ([]byte, error) {
	pageLen := PageLen(n.params.maxEntries)
	buf := make([]byte, n.pageLen())

	EncodeHeader(buf, n.leaf, n.parentOffset)
	if err := EncodeEntries(buf[:pageLen], n.entries, n.params.maxEntries, n.leaf); err != nil {
		return nil, err
	}

	if n.leaf {
		width := n.params.schema.RecordWidth()
		block := buf[pageLen:]
		for i, e := range n.entries {
			if err := EncodeLeafRecord(block[i*width:(i+1)*width], e.Record, n.params.schema); err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

func (n *Node) checkMutable(e Entry) error {
	if n.freed {
		return util.Freed("mutation of a freed node")
	}
	if n.leaf {
		// encoding into a scratch buffer catches kind and width errors early
		scratch := make([]byte, n.params.schema.RecordWidth())
		return EncodeLeafRecord(scratch, e.Record, n.params.schema)
	}
	return checkEntry(e, false)
}

// normalize gives leaf entries the payload they are stored with.
func (n *Node) normalize(e Entry) Entry {
	if n.leaf {
		e.Child = LEAF_PAYLOAD
	}
	return e
}

func (n *Node) changed() {
	n.dirty = true
	if !n.leaf {
		n.childrenChanged = true
	}
}

// Entry is a bounding box plus either a child page offset (internal nodes)
// or a leaf record.
type Entry struct {
	Bounds Envelope
	Child  int64
	Record Record
}

// Node is one R-tree node backed by a page in the index file. Only the tree
// algorithm mutates it; the mutators keep the dirty flag in step.
type Node struct {
	params          *Params
	offset          int64
	parentOffset    int64
	leaf            bool
	entries         []Entry
	dirty           bool
	freed           bool
	childrenChanged bool
}
