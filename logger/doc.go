// Package logger wraps zerolog with the structured fields used across the
// harness. Tests usually run with the default writer silenced; turn the
// level up to debug to watch signals move through the graph.
package logger
