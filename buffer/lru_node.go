package buffer

type lruNode[P Page] struct {
	prev   *lruNode[P]
	next   *lruNode[P]
	offset int64
	page   P
}

// lruList keeps the most recently used node right after head and the least
// recently used one right before tail.
type lruList[P Page] struct {
	head *lruNode[P]
	tail *lruNode[P]
}

func newLruList[P Page]() *lruList[P] {
	head := &lruNode[P]{offset: INVALID_OFFSET}
	tail := &lruNode[P]{offset: INVALID_OFFSET}

	head.next = tail
	tail.prev = head

	return &lruList[P]{head: head, tail: tail}
}

func (l *lruList[P]) pushFront(node *lruNode[P]) {
	tmp := l.head.next
	l.head.next = node
	node.prev = l.head
	node.next = tmp
	tmp.prev = node
}

func (l *lruList[P]) remove(node *lruNode[P]) {
	back := node.prev
	front := node.next

	back.next = front
	front.prev = back
	node.prev = nil
	node.next = nil
}

func (l *lruList[P]) moveToFront(node *lruNode[P]) {
	l.remove(node)
	l.pushFront(node)
}

// back returns the least recently used node, or nil on an empty list.
func (l *lruList[P]) back() *lruNode[P] {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}
