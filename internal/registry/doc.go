// Package registry models the tracked repository registry.
//
// A registry file is a multi-document YAML stream with one Project per
// document. Decode validates every document into typed Project and Remote
// values and reports schema problems as ParseError. Store reads and rewrites
// whole registry files; a write never leaves a partially written file behind.
package registry
