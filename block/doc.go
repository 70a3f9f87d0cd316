// Package block defines the processing unit of a service graph: the
// Block interface, the Context through which blocks reach their config,
// scheduler and output seams, a Registry of block factories, and the
// built-in block types the harness ships with.
//
// A mock is just another Block implementation; OverrideProcess builds
// one that replaces only the signal processing of an existing block
// while leaving its configured lifecycle intact.
package block
