package branchsync

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/checkouts/internal/githubapi"
	"github.com/temirov/checkouts/internal/githubauth"
	"github.com/temirov/checkouts/internal/metadatacache"
	"github.com/temirov/checkouts/internal/registry"
	"github.com/temirov/checkouts/internal/repos/shared"
)

const (
	commandUseConstant                      = "sync-branches"
	commandShortDescriptionConstant         = "Resolve default branches of registry projects from GitHub"
	commandLongDescriptionConstant          = "sync-branches fetches the default branch of every GitHub hosted project in the registry, propagates it to the project's remotes on the same host, and rewrites the registry once the pass completes."
	commandExecutionErrorTemplateConstant   = "branch sync failed: %w"
	registryPersistErrorTemplateConstant    = "unable to persist registry: %w"
	unexpectedArgumentsMessageConstant      = "sync-branches does not accept positional arguments"
	flagRegistryNameConstant                = "registry"
	flagRegistryDescriptionConstant         = "Path to the registry file"
	flagConcurrencyNameConstant             = "concurrency"
	flagConcurrencyDescriptionConstant      = "Maximum number of GitHub requests in flight"
	flagDryRunNameConstant                  = "dry-run"
	flagDryRunDescriptionConstant           = "Resolve branches without rewriting the registry"
	flagAbortOnTransportNameConstant        = "abort-on-transport-failure"
	flagAbortOnTransportDescriptionConstant = "Stop the pass on the first network or service failure"
	dryRunLogMessageConstant                = "dry run: registry left unchanged"
	persistedLogMessageConstant             = "registry persisted"
	logFieldRegistryPathConstant            = "registry_path"
	summaryOutcomeHeaderConstant            = "OUTCOME"
	summaryProjectsHeaderConstant           = "PROJECTS"
	summaryResolvedLabelConstant            = "resolved"
	summaryUnresolvedLabelConstant          = "unresolved"
	summarySkippedLabelConstant             = "skipped"
	summaryTotalLabelConstant               = "total"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current sync-branches configuration.
type ConfigurationProvider func() CommandConfiguration

// CredentialSourcesProvider returns where credentials are read from.
type CredentialSourcesProvider func() githubauth.Sources

// CredentialsLoader resolves the credentials of a run.
type CredentialsLoader interface {
	Load(sources githubauth.Sources) (githubauth.Credentials, error)
}

// CommandBuilder assembles the sync-branches cobra command.
type CommandBuilder struct {
	LoggerProvider            LoggerProvider
	ConfigurationProvider     ConfigurationProvider
	CredentialSourcesProvider CredentialSourcesProvider
	CredentialsLoader         CredentialsLoader
	HTTPClient                *http.Client
	FileSystem                registry.FileSystem
}

// Build constructs the sync-branches command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagRegistryNameConstant, "", flagRegistryDescriptionConstant)
	command.Flags().Int(flagConcurrencyNameConstant, 0, flagConcurrencyDescriptionConstant)
	command.Flags().Bool(flagDryRunNameConstant, false, flagDryRunDescriptionConstant)
	command.Flags().Bool(flagAbortOnTransportNameConstant, false, flagAbortOnTransportDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errUnexpectedArguments
	}

	configuration, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	logger := builder.resolveLogger()

	credentials, credentialsError := builder.resolveCredentialsLoader().Load(builder.resolveCredentialSources())
	if credentialsError != nil {
		return credentialsError
	}

	fetcher, fetcherError := builder.buildFetcher(credentials, configuration, logger)
	if fetcherError != nil {
		return fetcherError
	}

	store := registry.NewStore(builder.FileSystem)
	loadedRegistry, loadError := store.Load(configuration.RegistryPath)
	if loadError != nil {
		return loadError
	}

	service, serviceError := NewService(
		Dependencies{Fetcher: fetcher, Reporter: shared.NewWriterReporter(command.OutOrStdout()), Logger: logger},
		Options{Concurrency: configuration.Concurrency, TransportFailurePolicy: configuration.TransportFailurePolicy},
	)
	if serviceError != nil {
		return serviceError
	}

	result, syncError := service.Sync(command.Context(), loadedRegistry)
	if syncError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, syncError)
	}

	if configuration.DryRun {
		logger.Info(dryRunLogMessageConstant, zap.String(logFieldRegistryPathConstant, configuration.RegistryPath))
	} else {
		if saveError := store.Save(configuration.RegistryPath, result.Registry); saveError != nil {
			return fmt.Errorf(registryPersistErrorTemplateConstant, saveError)
		}
		logger.Info(persistedLogMessageConstant, zap.String(logFieldRegistryPathConstant, configuration.RegistryPath))
	}

	renderSummary(command.OutOrStdout(), result)
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (CommandConfiguration, error) {
	configuration := builder.resolveConfiguration()

	if command.Flags().Changed(flagRegistryNameConstant) {
		registryFlagValue, registryFlagError := command.Flags().GetString(flagRegistryNameConstant)
		if registryFlagError != nil {
			return CommandConfiguration{}, registryFlagError
		}
		configuration.RegistryPath = registryFlagValue
	}

	if command.Flags().Changed(flagConcurrencyNameConstant) {
		concurrencyFlagValue, concurrencyFlagError := command.Flags().GetInt(flagConcurrencyNameConstant)
		if concurrencyFlagError != nil {
			return CommandConfiguration{}, concurrencyFlagError
		}
		configuration.Concurrency = concurrencyFlagValue
	}

	if command.Flags().Changed(flagDryRunNameConstant) {
		dryRunFlagValue, dryRunFlagError := command.Flags().GetBool(flagDryRunNameConstant)
		if dryRunFlagError != nil {
			return CommandConfiguration{}, dryRunFlagError
		}
		configuration.DryRun = dryRunFlagValue
	}

	if command.Flags().Changed(flagAbortOnTransportNameConstant) {
		abortFlagValue, abortFlagError := command.Flags().GetBool(flagAbortOnTransportNameConstant)
		if abortFlagError != nil {
			return CommandConfiguration{}, abortFlagError
		}
		if abortFlagValue {
			configuration.TransportFailurePolicy = TransportFailurePolicyAbort
		} else {
			configuration.TransportFailurePolicy = TransportFailurePolicySkip
		}
	}

	return configuration.sanitize(), nil
}

func (builder *CommandBuilder) buildFetcher(credentials githubauth.Credentials, configuration CommandConfiguration, logger *zap.Logger) (*githubapi.Fetcher, error) {
	client, clientError := githubapi.NewClient(credentials, githubapi.ClientOptions{
		BaseURL:    configuration.APIBaseURL,
		HTTPClient: builder.HTTPClient,
	})
	if clientError != nil {
		return nil, clientError
	}

	cache, cacheError := metadatacache.New(configuration.CacheCapacity)
	if cacheError != nil {
		return nil, cacheError
	}

	return githubapi.NewFetcher(
		githubapi.Dependencies{Client: client, Cache: cache, Logger: logger},
		githubapi.Options{RetryAttempts: configuration.RetryAttempts, InitialBackoff: configuration.RetryInitialBackoff},
	)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider()
}

func (builder *CommandBuilder) resolveCredentialSources() githubauth.Sources {
	if builder.CredentialSourcesProvider == nil {
		return githubauth.DefaultSources()
	}
	return builder.CredentialSourcesProvider()
}

func (builder *CommandBuilder) resolveCredentialsLoader() CredentialsLoader {
	if builder.CredentialsLoader != nil {
		return builder.CredentialsLoader
	}
	return githubauth.NewLoader(nil, nil, nil)
}

func renderSummary(writer io.Writer, result Result) {
	summaryTable := table.NewWriter()
	summaryTable.SetOutputMirror(writer)
	summaryTable.AppendHeader(table.Row{summaryOutcomeHeaderConstant, summaryProjectsHeaderConstant})
	summaryTable.AppendRow(table.Row{summaryResolvedLabelConstant, len(result.Resolved)})
	summaryTable.AppendRow(table.Row{summaryUnresolvedLabelConstant, len(result.Unresolved)})
	summaryTable.AppendRow(table.Row{summarySkippedLabelConstant, len(result.Skipped)})
	summaryTable.AppendFooter(table.Row{summaryTotalLabelConstant, len(result.Registry.Projects)})
	summaryTable.Render()
}
