package branchsync

import (
	"strings"
	"time"

	"github.com/temirov/checkouts/internal/githubapi"
	"github.com/temirov/checkouts/internal/metadatacache"
	pathutils "github.com/temirov/checkouts/internal/utils/path"
)

const (
	// DefaultRegistryPath is the registry file read and rewritten by a sync.
	DefaultRegistryPath = "all_repos.yaml"

	registryConfigurationKeyConstant               = "registry"
	concurrencyConfigurationKeyConstant            = "concurrency"
	cacheCapacityConfigurationKeyConstant          = "cache_capacity"
	retryAttemptsConfigurationKeyConstant          = "retry_attempts"
	retryInitialBackoffConfigurationKeyConstant    = "retry_initial_backoff"
	transportFailurePolicyConfigurationKeyConstant = "transport_failure_policy"
	apiBaseURLConfigurationKeyConstant             = "api_base_url"
	dryRunConfigurationKeyConstant                 = "dry_run"
	configurationKeySeparatorConstant              = "."
)

var configurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// CommandConfiguration captures configuration values for sync-branches.
type CommandConfiguration struct {
	RegistryPath           string                 `mapstructure:"registry"`
	Concurrency            int                    `mapstructure:"concurrency"`
	CacheCapacity          int                    `mapstructure:"cache_capacity"`
	RetryAttempts          int                    `mapstructure:"retry_attempts"`
	RetryInitialBackoff    time.Duration          `mapstructure:"retry_initial_backoff"`
	TransportFailurePolicy TransportFailurePolicy `mapstructure:"transport_failure_policy"`
	APIBaseURL             string                 `mapstructure:"api_base_url"`
	DryRun                 bool                   `mapstructure:"dry_run"`
}

// DefaultCommandConfiguration provides baseline configuration values for sync-branches.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RegistryPath:           DefaultRegistryPath,
		Concurrency:            DefaultConcurrency,
		CacheCapacity:          metadatacache.DefaultCapacity,
		RetryAttempts:          githubapi.DefaultRetryAttempts,
		RetryInitialBackoff:    githubapi.DefaultInitialBackoff,
		TransportFailurePolicy: TransportFailurePolicySkip,
	}
}

// DefaultConfigurationValues renders the defaults as viper keys below prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	values := map[string]any{
		registryConfigurationKeyConstant:               defaults.RegistryPath,
		concurrencyConfigurationKeyConstant:            defaults.Concurrency,
		cacheCapacityConfigurationKeyConstant:          defaults.CacheCapacity,
		retryAttemptsConfigurationKeyConstant:          defaults.RetryAttempts,
		retryInitialBackoffConfigurationKeyConstant:    defaults.RetryInitialBackoff.String(),
		transportFailurePolicyConfigurationKeyConstant: string(defaults.TransportFailurePolicy),
		apiBaseURLConfigurationKeyConstant:             defaults.APIBaseURL,
		dryRunConfigurationKeyConstant:                 defaults.DryRun,
	}

	trimmedPrefix := strings.TrimSpace(prefix)
	if len(trimmedPrefix) == 0 {
		return values
	}

	prefixedValues := make(map[string]any, len(values))
	for key, value := range values {
		prefixedValues[trimmedPrefix+configurationKeySeparatorConstant+key] = value
	}
	return prefixedValues
}

// sanitize trims values and falls back to defaults for unusable ones.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.RegistryPath = strings.TrimSpace(configuration.RegistryPath)
	if len(sanitized.RegistryPath) == 0 {
		sanitized.RegistryPath = defaults.RegistryPath
	}
	sanitized.RegistryPath = configurationHomeDirectoryExpander.Expand(sanitized.RegistryPath)

	if sanitized.Concurrency <= 0 {
		sanitized.Concurrency = defaults.Concurrency
	}
	if sanitized.CacheCapacity <= 0 {
		sanitized.CacheCapacity = defaults.CacheCapacity
	}
	if sanitized.RetryAttempts <= 0 {
		sanitized.RetryAttempts = defaults.RetryAttempts
	}
	if sanitized.RetryInitialBackoff <= 0 {
		sanitized.RetryInitialBackoff = defaults.RetryInitialBackoff
	}
	if len(sanitized.TransportFailurePolicy) == 0 {
		sanitized.TransportFailurePolicy = defaults.TransportFailurePolicy
	}
	sanitized.APIBaseURL = strings.TrimSpace(configuration.APIBaseURL)

	return sanitized
}
