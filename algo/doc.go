// Package algo collects the small, branch-free numeric primitives the rest
// of the module builds on: interpolation, overflow-safe midpoint, the
// double-to-long total-order bit reinterpretation, and hinted binary
// search. None of these allocate and none depend on any other package in
// this module.
package algo
