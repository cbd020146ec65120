// Package githubauth loads the GitHub credentials used by a sync run: a
// long-lived token read from a file and the account identity read from the
// environment.
package githubauth
