// Package csync provides thread-safe generic collections shared between the
// scheduler loop, task goroutines and the status API.
package csync
