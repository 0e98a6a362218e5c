// Package security provides validation, sanitization, and limits for the scheduler.
//
// This package includes:
//   - Input validation for scheduler names and task identifiers
//   - Sanitization of task identifiers before they are written to logs
//   - Clamping functions to enforce safe limits on retries and polling delays
//
// Most users should import the root package github.com/jdziat/redis-scheduler
// which re-exports these functions.
package security
