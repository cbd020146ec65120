// Package branchsync resolves the default branch of every GitHub hosted
// project in a registry and merges the result back.
//
// Service fans fetches out over a bounded worker pool, records the branch on
// the primary remote and on every remote of the same project that shares its
// host, and reports projects it could not resolve without stopping the pass.
// CommandBuilder exposes the pass as the sync-branches command, which
// rewrites the registry file only after the whole pass completed.
package branchsync
