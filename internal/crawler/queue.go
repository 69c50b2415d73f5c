package crawler

// targetQueue is a slice-backed FIFO of crawl targets
type targetQueue struct {
	items []CrawlTarget
	head  int
}

func (q *targetQueue) push(t CrawlTarget) {
	q.items = append(q.items, t)
}

func (q *targetQueue) pop() (CrawlTarget, bool) {
	if q.head >= len(q.items) {
		return CrawlTarget{}, false
	}

	t := q.items[q.head]
	q.items[q.head] = CrawlTarget{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t, true
}

func (q *targetQueue) len() int {
	return len(q.items) - q.head
}
