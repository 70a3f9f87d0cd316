// Package router implements the intercepting signal router that stands
// in for a live broker during tests. It forwards signals through the
// block graph's declared connections, transparently records everything
// that flows (per topic and per block), and exposes condition-style
// waits that bridge asynchronous delivery and synchronous assertions.
package router
