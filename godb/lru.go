package godb

// lruList is an intrusive doubly-linked list of cached pages, backed by an
// arena of nodes indexed by PageID, used by BufferPool to pick an eviction
// victim in least-recently-used order. The hash map owns each node; the list
// pointers are non-owning references into it, so a node is removed from both
// structures together.

type lruNode struct {
	pid        PageID
	page       Page
	prev, next *lruNode
}

type lruList struct {
	nodes      map[PageID]*lruNode
	head, tail *lruNode // sentinels; head.next is most-recently-used
}

func newLRUList() *lruList {
	head := &lruNode{}
	tail := &lruNode{}
	head.next = tail
	tail.prev = head
	return &lruList{nodes: make(map[PageID]*lruNode), head: head, tail: tail}
}

func (l *lruList) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (l *lruList) pushFront(n *lruNode) {
	n.next = l.head.next
	n.prev = l.head
	l.head.next.prev = n
	l.head.next = n
}

// touch records pid as most-recently-used, inserting it if absent.
func (l *lruList) touch(pid PageID, page Page) {
	if n, ok := l.nodes[pid]; ok {
		n.page = page
		l.unlink(n)
		l.pushFront(n)
		return
	}
	n := &lruNode{pid: pid, page: page}
	l.nodes[pid] = n
	l.pushFront(n)
}

// get returns the cached page for pid, if present.
func (l *lruList) get(pid PageID) (Page, bool) {
	n, ok := l.nodes[pid]
	if !ok {
		return nil, false
	}
	return n.page, true
}

// remove evicts pid from the list entirely.
func (l *lruList) remove(pid PageID) {
	n, ok := l.nodes[pid]
	if !ok {
		return
	}
	l.unlink(n)
	delete(l.nodes, pid)
}

func (l *lruList) len() int {
	return len(l.nodes)
}

// victims returns cached PageIDs ordered from least- to most-recently-used,
// for the buffer pool's eviction scan.
func (l *lruList) victims() []PageID {
	out := make([]PageID, 0, len(l.nodes))
	for n := l.tail.prev; n != l.head; n = n.prev {
		out = append(out, n.pid)
	}
	return out
}

func (l *lruList) all() []PageID {
	out := make([]PageID, 0, len(l.nodes))
	for pid := range l.nodes {
		out = append(out, pid)
	}
	return out
}
