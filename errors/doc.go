// Package errors defines the structured error types used throughout the
// test harness. Every failure carries a machine-readable code so callers
// can tell configuration problems, schema drift, and ordinary assertion
// failures apart without string matching.
package errors
