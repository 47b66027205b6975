package index

import (
	"fmt"
	"io"
	"strings"

	"github.com/jobala/rtstore/util"
)

// Inspect prints every node reachable from the root, breadth first: its
// offset, kind, parent and entries.
func Inspect(w io.Writer, p *Params) error {
	return p.Do(func() error {
		if p.root == INVALID_OFFSET {
			_, err := fmt.Fprintln(w, "empty index")
			return err
		}

		return walk(p, func(node *Node, depth int) error {
			kind := "internal"
			if node.IsLeaf() {
				kind = "leaf"
			}

			if _, err := fmt.Fprintf(w, "node %d depth=%d %s parent=%d entries=%d\n",
				node.Offset(), depth, kind, node.ParentOffset(), node.Len()); err != nil {
				return err
			}

			for i, e := range node.entries {
				target := fmt.Sprintf("-> %d", e.Child)
				if node.IsLeaf() {
					target = formatRecord(e.Record)
				}
				if _, err := fmt.Fprintf(w, "  [%d] %s %s\n", i, formatEnvelope(e.Bounds), target); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Stat walks the tree and summarizes it along with the page file layout.
func Stat(p *Params) (Stats, error) {
	stats := Stats{
		MaxEntries:   p.maxEntries,
		PageLen:      p.PageLen(),
		LeafBlockLen: p.LeafBlockLen(),
		RecordWidth:  p.schema.RecordWidth(),
	}

	err := p.Do(func() error {
		stats.Root = p.root
		stats.FileEnd = p.alloc.End()
		stats.Orphaned = p.alloc.Orphaned()

		size, err := p.ch.Size()
		if err != nil {
			return err
		}
		stats.FileSize = size

		if p.root == INVALID_OFFSET {
			return nil
		}

		return walk(p, func(node *Node, depth int) error {
			if node.IsLeaf() {
				stats.Leaves++
				stats.Records += node.Len()
			} else {
				stats.Internal++
			}
			stats.Depth = max(stats.Depth, depth+1)
			return nil
		})
	})

	return stats, err
}

// walk visits nodes breadth first from the root. The caller holds the lock.
func walk(p *Params, visit func(node *Node, depth int) error) error {
	type item struct {
		offset int64
		depth  int
	}

	queue := []item{{offset: p.root}}
	seen := map[int64]bool{}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if seen[next.offset] {
			return util.CorruptPage("page %d is reachable twice", next.offset)
		}
		seen[next.offset] = true

		node, err := p.GetNode(next.offset)
		if err != nil {
			return err
		}
		if err := visit(node, next.depth); err != nil {
			return err
		}

		if node.IsLeaf() {
			continue
		}
		for _, e := range node.entries {
			queue = append(queue, item{offset: e.Child, depth: next.depth + 1})
		}
	}

	return nil
}

func formatEnvelope(e Envelope) string {
	return fmt.Sprintf("(%g %g %g %g)", e.MinX, e.MaxX, e.MinY, e.MaxY)
}

func formatRecord(rec Record) string {
	parts := make([]string, len(rec))
	for i, v := range rec {
		if s, ok := v.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type Stats struct {
	MaxEntries   int
	PageLen      int
	LeafBlockLen int
	RecordWidth  int
	Root         int64
	FileSize     int64
	FileEnd      int64
	Orphaned     int64
	Internal     int
	Leaves       int
	Records      int
	Depth        int
}
