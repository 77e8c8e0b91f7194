// Package parallel provides the worker pool the soft backend uses to run
// per-band pixel work on all cores.
package parallel
