// Package interview orchestrates a phone screening: it turns gateway
// webhooks into dialogue turns, classifies each turn's outcome, and runs the
// end-of-interview workflow exactly once per call.
package interview
