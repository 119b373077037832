package softrender

import (
	"sync"
	"testing"
)

func TestForRowsCoversEveryRowOnce(t *testing.T) {
	p := newRowPool(4)
	defer p.Close()

	const height = 103
	var mu sync.Mutex
	counts := make([]int, height)
	p.forRows(height, func(y0, y1 int) {
		mu.Lock()
		for y := y0; y < y1; y++ {
			counts[y]++
		}
		mu.Unlock()
	})
	for y, c := range counts {
		if c != 1 {
			t.Fatalf("row %d visited %d times, want exactly once", y, c)
		}
	}
}

func TestForRowsSmallHeights(t *testing.T) {
	p := newRowPool(8)
	defer p.Close()

	for _, height := range []int{1, 2, 3} {
		var mu sync.Mutex
		visited := 0
		p.forRows(height, func(y0, y1 int) {
			mu.Lock()
			visited += y1 - y0
			mu.Unlock()
		})
		if visited != height {
			t.Errorf("height %d: visited %d rows", height, visited)
		}
	}
	// Zero height is a no-op, not a panic.
	p.forRows(0, func(y0, y1 int) { t.Error("fn called for zero height") })
}

func TestForRowsAfterClose(t *testing.T) {
	p := newRowPool(2)
	p.Close()
	p.Close() // idempotent

	called := false
	p.forRows(10, func(y0, y1 int) {
		if y0 != 0 || y1 != 10 {
			t.Errorf("direct-call band = [%d, %d), want the whole range", y0, y1)
		}
		called = true
	})
	if !called {
		t.Error("closed pool must run the work directly")
	}
}

func TestForRowsConcurrentCallers(t *testing.T) {
	p := newRowPool(4)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var mu sync.Mutex
			n := 0
			p.forRows(50, func(y0, y1 int) {
				mu.Lock()
				n += y1 - y0
				mu.Unlock()
			})
			if n != 50 {
				t.Errorf("concurrent forRows visited %d rows, want 50", n)
			}
		}()
	}
	wg.Wait()
}
