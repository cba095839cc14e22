package engine

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum item count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// Backend executes data-parallel stages. Run must call fn over disjoint
// ranges that together cover [0, n) and return only once every call has
// finished, so consecutive Runs are separated by a full barrier.
type Backend interface {
	Workers() int
	Run(n int, fn func(lo, hi int))
	Stop()
}

// workChunk represents a range of items for a worker to process.
type workChunk struct {
	lo, hi int
	fn     func(lo, hi int)
}

// WorkerPool is the default Backend: a set of persistent goroutines fed
// chunks over a channel.
type WorkerPool struct {
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewWorkerPool creates a pool with the given worker count (<= 0 means
// GOMAXPROCS). Workers start lazily on the first parallel Run.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{numWorkers: workers}
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int { return p.numWorkers }

// startWorkers launches persistent worker goroutines.
func (p *WorkerPool) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop signals all workers to exit and waits for them. The pool restarts
// on the next parallel Run.
func (p *WorkerPool) Stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			chunk.fn(chunk.lo, chunk.hi)
			p.doneChan <- struct{}{}
		}
	}
}

// Run splits [0, n) into one chunk per worker and waits for all of them.
func (p *WorkerPool) Run(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold || p.numWorkers == 1 {
		fn(0, n)
		return
	}

	// Ensure workers are running
	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		lo := w * chunkSize
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}

		p.workChan <- workChunk{lo: lo, hi: hi, fn: fn}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
