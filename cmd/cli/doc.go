// Package cli constructs the checkouts command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader and the zap
// logger, and registers the sync-branches and used-repos subcommands.
package cli
