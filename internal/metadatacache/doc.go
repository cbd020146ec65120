// Package metadatacache keeps GitHub API responses for the duration of a run
// so identical repository lookups reach the network once.
package metadatacache
