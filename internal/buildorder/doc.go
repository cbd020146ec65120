// Package buildorder selects the registry entries a build actually installs
// from source. Build plans are read from a directory in filename order and
// every source install step is resolved strictly against the registry.
package buildorder
