package buildorder

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/checkouts/internal/registry"
	"github.com/temirov/checkouts/internal/repos/filesystem"
)

const (
	commandUseConstant                    = "used-repos"
	commandShortDescriptionConstant       = "List the remotes installed from source by the build plans"
	commandLongDescriptionConstant        = "used-repos reads every build plan in the build order directory and writes the primary remote of each project installed from source, in build order."
	commandExecutionErrorTemplateConstant = "used repositories selection failed: %w"
	outputWriteErrorTemplateConstant      = "unable to write used repositories: %w"
	unexpectedArgumentsMessageConstant    = "used-repos does not accept positional arguments"
	flagRegistryNameConstant              = "registry"
	flagRegistryDescriptionConstant       = "Path to the registry file"
	flagBuildOrderDirectoryNameConstant   = "build-order-dir"
	flagBuildOrderDirectoryDescription    = "Directory holding the build plan files"
	flagOutputNameConstant                = "output"
	flagOutputDescriptionConstant         = "Path of the used repositories file to write"
	usedRemotesLogMessageConstant         = "used repositories written"
	logFieldPlanCountConstant             = "plans"
	logFieldRemoteCountConstant           = "remotes"
	logFieldOutputPathConstant            = "output_path"
)

var errUnexpectedArguments = errors.New(unexpectedArgumentsMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current used-repos configuration.
type ConfigurationProvider func() CommandConfiguration

// FileSystem exposes the file access used by the used-repos command.
type FileSystem interface {
	registry.FileSystem
	ReadDir(path string) ([]fs.DirEntry, error)
}

// CommandBuilder assembles the used-repos cobra command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	FileSystem            FileSystem
}

// Build constructs the used-repos command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	command.Flags().String(flagRegistryNameConstant, "", flagRegistryDescriptionConstant)
	command.Flags().String(flagBuildOrderDirectoryNameConstant, "", flagBuildOrderDirectoryDescription)
	command.Flags().String(flagOutputNameConstant, "", flagOutputDescriptionConstant)

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
	fileSystem := builder.resolveFileSystem()
	store := registry.NewStore(fileSystem)

	trackedRegistry, loadError := store.Load(configuration.RegistryPath)
	if loadError != nil {
		return loadError
	}

	plans, plansError := NewPlanLoader(fileSystem).LoadPlans(configuration.BuildOrderDirectory)
	if plansError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, plansError)
	}

	usedRemotes, filterError := UsedRemotes(trackedRegistry, plans)
	if filterError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, filterError)
	}

	if saveError := store.SaveRemotes(configuration.OutputPath, usedRemotes); saveError != nil {
		return fmt.Errorf(outputWriteErrorTemplateConstant, saveError)
	}

	logger.Info(
		usedRemotesLogMessageConstant,
		zap.Int(logFieldPlanCountConstant, len(plans)),
		zap.Int(logFieldRemoteCountConstant, len(usedRemotes)),
		zap.String(logFieldOutputPathConstant, configuration.OutputPath),
	)
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) (CommandConfiguration, error) {
	configuration := builder.resolveConfiguration()

	flagTargets := []struct {
		flagName string
		target   *string
	}{
		{flagName: flagRegistryNameConstant, target: &configuration.RegistryPath},
		{flagName: flagBuildOrderDirectoryNameConstant, target: &configuration.BuildOrderDirectory},
		{flagName: flagOutputNameConstant, target: &configuration.OutputPath},
	}
	for _, flagTarget := range flagTargets {
		if !command.Flags().Changed(flagTarget.flagName) {
			continue
		}
		flagValue, flagError := command.Flags().GetString(flagTarget.flagName)
		if flagError != nil {
			return CommandConfiguration{}, flagError
		}
		*flagTarget.target = flagValue
	}

	return configuration.sanitize(), nil
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

func (builder *CommandBuilder) resolveFileSystem() FileSystem {
	if builder.FileSystem == nil {
		return filesystem.OSFileSystem{}
	}
	return builder.FileSystem
}
