package dialog

// workerPool is a fixed-size pool for the resolution-adjacent lookups (FAQ,
// chit-chat) issued concurrently on every turn. Jobs block until a worker is
// free; there is no cancellation or timeout on the sub-calls themselves, so
// a slow external dependency stalls the turn.
type workerPool struct {
	jobs chan func()
}

func newWorkerPool(workers int) *workerPool {
	p := &workerPool{jobs: make(chan func())}
	for i := 0; i < workers; i++ {
		go func() {
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

func (p *workerPool) submit(job func()) {
	p.jobs <- job
}

func (p *workerPool) close() {
	close(p.jobs)
}
