// Package jobpool implements a fixed-size worker pool for background jobs.
//
// A WorkerPool owns a set number of goroutines that consume one unbounded FIFO
// queue. Submit is fire-and-forget; SubmitErr returns a Handle for callers
// that need the outcome. A panicking job is recovered and reported, and the
// worker keeps running. Stop discards jobs that were never claimed and waits
// for every worker to exit.
package jobpool
