package crawler

import (
	"fmt"
	"testing"
)

func TestTargetQueue_FIFO(t *testing.T) {
	var q targetQueue

	if _, ok := q.pop(); ok {
		t.Fatal("Expected empty queue to return ok=false")
	}

	const n = 5000
	for i := 0; i < n; i++ {
		q.push(CrawlTarget{URL: fmt.Sprintf("https://example.test/%d", i), Depth: i})
	}
	if q.len() != n {
		t.Fatalf("Expected len %d, got %d", n, q.len())
	}

	for i := 0; i < n; i++ {
		// Interleave pushes so compaction happens with live items behind head.
		if i == n/2 {
			q.push(CrawlTarget{URL: "https://example.test/tail", Depth: -1})
		}
		target, ok := q.pop()
		if !ok {
			t.Fatalf("Unexpected empty queue at %d", i)
		}
		if target.Depth != i {
			t.Fatalf("Expected depth %d, got %d", i, target.Depth)
		}
	}

	target, ok := q.pop()
	if !ok || target.URL != "https://example.test/tail" {
		t.Errorf("Expected tail target, got %+v (ok=%v)", target, ok)
	}
	if q.len() != 0 {
		t.Errorf("Expected empty queue, got len %d", q.len())
	}
}
