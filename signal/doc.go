// Package signal defines the message payload that flows through a block
// graph. A Signal's attributes are copied on creation and never mutated
// afterward; every Signal carries a monotonically increasing sequence
// number so recorded buffers can be ordered by creation.
package signal
