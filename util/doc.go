// Package util provides small generic helpers shared by the harness
// packages.
package util
