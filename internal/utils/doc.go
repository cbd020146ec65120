// Package utils exposes the configuration and logging plumbing shared by the
// checkouts commands: a Viper backed ConfigurationLoader with typed decode
// hooks and a zap LoggerFactory.
package utils
