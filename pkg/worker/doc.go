// Package worker provides the polling loop that drives a scheduler.
//
// This package includes:
//   - Poller: repeatedly asks a Runner to trigger the next due task
//   - Option: configuration for polling delay, retries and hooks
//   - The connection-failure retry policy
//
// Most users never use this package directly: scheduler.Scheduler owns one
// Poller per Start call.
package worker
