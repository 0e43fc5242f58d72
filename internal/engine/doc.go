// Package engine provides the asynchronous run execution engine. It
// drives the render executors in background goroutines, updates the store
// with run lifecycle transitions and per-tile records, and fans completed
// tiles out to streaming subscribers through the tile broker.
package engine
