// Package logger wraps zerolog behind a small structured logging interface.
//
// Components receive a Logger at construction time and attach fields per
// call:
//
//	log.DebugWithFields("Image dispatched", map[string]interface{}{
//	    "url":   remote,
//	    "index": i,
//	})
//
// The command layer calls Initialize once; every record from that run then
// carries the same run_id. Tests use NewTestLogger to capture records or
// NewNopLogger to discard them.
package logger
