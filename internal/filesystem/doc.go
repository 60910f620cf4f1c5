/*
Package filesystem wraps the filesystem calls the indexer makes against the
media library (stat, open, readdir) with retry logic for NFS stale file
handle errors.

Media libraries are frequently mounted over NFS or SMB. A scan that touches
tens of thousands of files will occasionally see ESTALE when the server
rotates handles underneath it; those calls are retried with exponential
backoff, every other error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())

Instrumentation is reported through an [Observer] registered with
[SetObserver]. The metrics package provides the Prometheus implementation;
when no observer is set, nothing is recorded.
*/
package filesystem
