// Package githubapi resolves repository metadata from the GitHub REST API.
//
// A Fetcher wraps a go-github client with the run-scoped metadata cache and
// retries transient failures with exponential backoff. Failures are
// classified so callers can tell an absent upstream (IsNotFound) from a
// service or network problem (IsTransportFailure).
package githubapi
