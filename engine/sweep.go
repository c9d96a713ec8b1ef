package engine

import (
	"sync"

	"github.com/thrasher-corp/backsim/breaker"
	"github.com/thrasher-corp/backsim/config"
	"github.com/thrasher-corp/backsim/data"
	"github.com/thrasher-corp/backsim/log"
	"github.com/thrasher-corp/backsim/strategies"
)

// SweepJob is one independent run of a parameter sweep. Every job owns its
// engine, portfolio and feed so no locking is needed between runs; only the
// optional shared governor synchronises internally
type SweepJob struct {
	Name     string
	Config   *config.Config
	Feed     *data.Feed
	Handlers []strategies.Handler
}

// SweepResult pairs a job with its outcome
type SweepResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunSweep executes jobs across a bounded worker pool and returns results in
// job order
func RunSweep(jobs []SweepJob, governor *breaker.CircuitBreaker, workers int) []SweepResult {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}
	results := make([]SweepResult, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				job := jobs[i]
				results[i] = SweepResult{Name: job.Name}
				eng, err := New(job.Config, job.Feed, job.Handlers, governor)
				if err != nil {
					results[i].Err = err
					continue
				}
				results[i].Result, results[i].Err = eng.Run()
				if results[i].Err != nil {
					log.Errorf(log.Backtester, "sweep job %v failed: %v", job.Name, results[i].Err)
				}
			}
		}()
	}
	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results
}
