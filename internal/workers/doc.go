/*
Package workers sizes and runs the goroutines that perform blocking
filesystem work for the indexer.

# Sizing

When running in a container, the number of available CPUs may be limited by
cgroup constraints. Go 1.19+ sets GOMAXPROCS from those limits, while
runtime.NumCPU() still reports the host's CPU count. The helpers here base
their answer on GOMAXPROCS:

	// For I/O-bound tasks (directory reads, stat, metadata parsing)
	numWorkers := workers.ForIO(8)

	// For CPU-bound tasks
	numWorkers := workers.ForCPU(4)

	// 3 workers per CPU, maximum of 24
	numWorkers := workers.Count(3.0, 24)

All of them honour the INDEX_WORKERS environment variable, which pins the
count (still capped by the limit):

	env:
	- name: INDEX_WORKERS
	  value: "4"

# Pool

Pool is the execution context the scan pipeline hands blocking work to. It
bounds concurrency with a semaphore and delivers each result on a channel:

	pool := workers.NewPool(workers.ForIO(8))
	defer pool.Close()

	entries, err := workers.Run(ctx, pool, func() ([]os.DirEntry, error) {
		return os.ReadDir(dir)
	})

Submit returns the channel without waiting, so several directory reads can be
in flight at once.
*/
package workers
