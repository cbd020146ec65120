package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/checkouts/internal/branchsync"
	"github.com/temirov/checkouts/internal/buildorder"
	"github.com/temirov/checkouts/internal/githubauth"
	"github.com/temirov/checkouts/internal/utils"
)

const (
	applicationNameConstant                  = "checkouts"
	applicationShortDescriptionConstant      = "Maintain the registry of upstream checkouts used by the build"
	applicationLongDescriptionConstant       = "checkouts keeps the project registry in sync with GitHub default branches and selects the remotes the build plans install from source."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant           = "common"
	commonLogLevelConfigKeyConstant          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant         = commonConfigurationKeyConstant + ".log_format"
	credentialsConfigurationKeyConstant      = "credentials"
	credentialsTokenFileConfigKeyConstant    = credentialsConfigurationKeyConstant + ".token_file"
	credentialsIdentityConfigKeyConstant     = credentialsConfigurationKeyConstant + ".identity_environment"
	environmentPrefixConstant                = "CHECKOUTS"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	subcommandBuildErrorTemplateConstant     = "unable to build %s command: %w"
	rootCommandDebugMessageConstant          = "checkouts invoked without a subcommand"
	logFieldArgumentsConstant                = "arguments"
	loggerNotInitializedMessageConstant      = "logger not initialized"
	defaultConfigurationSearchPathConstant   = "."
	toolsConfigurationKeyConstant            = "tools"
	syncBranchesConfigurationKeyConstant     = toolsConfigurationKeyConstant + ".sync_branches"
	usedReposConfigurationKeyConstant        = toolsConfigurationKeyConstant + ".used_repos"
	syncBranchesCommandNameForErrorsConstant = "sync-branches"
	usedReposCommandNameForErrorsConstant    = "used-repos"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common      ApplicationCommonConfiguration `mapstructure:"common"`
	Credentials githubauth.Sources             `mapstructure:"credentials"`
	Tools       ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for each subcommand.
type ApplicationToolsConfiguration struct {
	SyncBranches branchsync.CommandConfiguration `mapstructure:"sync_branches"`
	UsedRepos    buildorder.CommandConfiguration `mapstructure:"used_repos"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	credentialsLoader     branchsync.CredentialsLoader
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application, _ := newApplication(nil)
	return application
}

func newApplication(credentialsLoader branchsync.CredentialsLoader) (*Application, error) {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		credentialsLoader:   credentialsLoader,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	syncBranchesBuilder := branchsync.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() branchsync.CommandConfiguration {
			return application.configuration.Tools.SyncBranches
		},
		CredentialSourcesProvider: func() githubauth.Sources {
			return application.configuration.Credentials
		},
		CredentialsLoader: application.credentialsLoader,
	}
	syncBranchesCommand, syncBranchesBuildError := syncBranchesBuilder.Build()
	if syncBranchesBuildError != nil {
		return application, fmt.Errorf(subcommandBuildErrorTemplateConstant, syncBranchesCommandNameForErrorsConstant, syncBranchesBuildError)
	}
	cobraCommand.AddCommand(syncBranchesCommand)

	usedReposBuilder := buildorder.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() buildorder.CommandConfiguration {
			return application.configuration.Tools.UsedRepos
		},
	}
	usedReposCommand, usedReposBuildError := usedReposBuilder.Build()
	if usedReposBuildError != nil {
		return application, fmt.Errorf(subcommandBuildErrorTemplateConstant, usedReposCommandNameForErrorsConstant, usedReposBuildError)
	}
	cobraCommand.AddCommand(usedReposCommand)

	application.rootCommand = cobraCommand

	return application, nil
}

// Execute runs the command hierarchy until it completes or the process is
// interrupted, then flushes the logger.
func (application *Application) Execute() error {
	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:       string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:      string(utils.LogFormatStructured),
		credentialsTokenFileConfigKeyConstant: githubauth.DefaultTokenFilePath,
		credentialsIdentityConfigKeyConstant:  githubauth.DefaultIdentityEnvironmentVariable,
	}
	for configurationKey, configurationValue := range branchsync.DefaultConfigurationValues(syncBranchesConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range buildorder.DefaultConfigurationValues(usedReposConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
