// Package memory configures the Go memory limit for containerized
// deployments and provides backpressure for the scan pipeline.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (bytes, usually from the
// Kubernetes Downward API) times MEMORY_RATIO (default 0.85). An explicit
// GOMEMLIMIT wins and is only reported.
//
// A [Monitor] samples heap usage against that limit. While usage sits above
// the pause mark, [Monitor.Wait] blocks; the indexer calls it between files so
// a large scan yields to the garbage collector instead of being OOM-killed.
//
//	memory.ConfigureFromEnv()
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
package memory
