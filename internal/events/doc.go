// Package events carries task status updates from running tasks to
// observers. Tasks publish without blocking; a single rendering goroutine
// drains the stream, so status production is decoupled from console output
// and no task lock is ever held while rendering.
package events
