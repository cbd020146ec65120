package buildorder

import (
	"strings"

	pathutils "github.com/temirov/checkouts/internal/utils/path"
)

// Default locations used by used-repos.
const (
	DefaultRegistryPath        = "all_repos.yaml"
	DefaultBuildOrderDirectory = "build_order.d"
	DefaultOutputPath          = "used_repos.yaml"
)

const configurationKeySeparatorConstant = "."

var configurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// CommandConfiguration captures configuration values for used-repos.
type CommandConfiguration struct {
	RegistryPath        string `mapstructure:"registry"`
	BuildOrderDirectory string `mapstructure:"build_order_dir"`
	OutputPath          string `mapstructure:"output"`
}

// DefaultCommandConfiguration provides baseline configuration values for used-repos.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RegistryPath:        DefaultRegistryPath,
		BuildOrderDirectory: DefaultBuildOrderDirectory,
		OutputPath:          DefaultOutputPath,
	}
}

// DefaultConfigurationValues renders the defaults as viper keys below prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	keyPrefix := ""
	if trimmedPrefix := strings.TrimSpace(prefix); len(trimmedPrefix) > 0 {
		keyPrefix = trimmedPrefix + configurationKeySeparatorConstant
	}
	return map[string]any{
		keyPrefix + "registry":        defaults.RegistryPath,
		keyPrefix + "build_order_dir": defaults.BuildOrderDirectory,
		keyPrefix + "output":          defaults.OutputPath,
	}
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	return CommandConfiguration{
		RegistryPath:        sanitizePath(configuration.RegistryPath, defaults.RegistryPath),
		BuildOrderDirectory: sanitizePath(configuration.BuildOrderDirectory, defaults.BuildOrderDirectory),
		OutputPath:          sanitizePath(configuration.OutputPath, defaults.OutputPath),
	}
}

func sanitizePath(candidate string, fallback string) string {
	trimmed := strings.TrimSpace(candidate)
	if len(trimmed) == 0 {
		trimmed = fallback
	}
	return configurationHomeDirectoryExpander.Expand(trimmed)
}
