package softrender

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// rowPool distributes scanline bands of a frame across worker
// goroutines. Each worker has its own queue and steals from the others
// when idle, which balances load between empty-background rays and rays
// that traverse the full volume.
type rowPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// newRowPool starts workers goroutines; 0 or negative uses GOMAXPROCS.
func newRowPool(workers int) *rowPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}
	p := &rowPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *rowPool) worker(id int) {
	defer p.wg.Done()
	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return
		case work := <-mine:
			if work != nil {
				work()
			}
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				select {
				case <-p.done:
					p.drain(mine)
					return
				case work := <-mine:
					if work != nil {
						work()
					}
				}
			}
		}
	}
}

func (p *rowPool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

func (p *rowPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// forRows splits [0, height) into per-worker bands and runs fn(y0, y1)
// for each band, blocking until all bands complete. Falls back to a
// direct call when the pool is closed.
func (p *rowPool) forRows(height int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	if !p.running.Load() {
		fn(0, height)
		return
	}
	bands := p.workers * 4
	if bands > height {
		bands = height
	}
	var wg sync.WaitGroup
	wg.Add(bands)
	for b := 0; b < bands; b++ {
		y0 := height * b / bands
		y1 := height * (b + 1) / bands
		worker := b % p.workers
		job := func() {
			defer wg.Done()
			fn(y0, y1)
		}
		select {
		case p.queues[worker] <- job:
		case <-p.done:
			job()
		}
	}
	wg.Wait()
}

// Close stops accepting work, finishes queued bands, and stops the
// workers. Safe to call multiple times.
func (p *rowPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
