package utils_test

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/checkouts/internal/utils"
)

const (
	testEnvironmentPrefixConstant     = "TESTCHECKOUTS"
	testLogLevelKeyConstant           = "common.log_level"
	testDefaultLogLevelConstant       = "info"
	testEmbeddedLogLevelConstant      = "debug"
	testFileLogLevelConstant          = "warn"
	testEnvironmentLogLevelConstant   = "error"
	testConfigFileNameConstant        = "config.yaml"
	testConfigContentTemplateConstant = "common:\n  log_level: %s\n"
	testConfigurationNameConstant     = "config"
	testConfigurationTypeConstant     = "yaml"
)

type modeFixture string

var _ encoding.TextUnmarshaler = (*modeFixture)(nil)

func (mode *modeFixture) UnmarshalText(text []byte) error {
	switch value := strings.ToLower(strings.TrimSpace(string(text))); value {
	case "fast", "safe":
		*mode = modeFixture(value)
		return nil
	default:
		return errors.New("unknown mode " + value)
	}
}

type configurationFixture struct {
	Common configurationCommonFixture `mapstructure:"common"`
	Tools  configurationToolsFixture  `mapstructure:"tools"`
}

type configurationCommonFixture struct {
	LogLevel string `mapstructure:"log_level"`
}

type configurationToolsFixture struct {
	Backoff time.Duration `mapstructure:"backoff"`
	Mode    modeFixture   `mapstructure:"mode"`
	Hosts   []string      `mapstructure:"hosts"`
}

func TestConfigurationLoaderLayersSources(testInstance *testing.T) {
	testCases := []struct {
		name                string
		embeddedLogLevel    string
		fileLogLevel        string
		environmentLogLevel string
		expectedLogLevel    string
	}{
		{name: "defaults_are_applied", expectedLogLevel: testDefaultLogLevelConstant},
		{name: "embedded_overrides_defaults", embeddedLogLevel: testEmbeddedLogLevelConstant, expectedLogLevel: testEmbeddedLogLevelConstant},
		{name: "file_overrides_embedded", embeddedLogLevel: testEmbeddedLogLevelConstant, fileLogLevel: testFileLogLevelConstant, expectedLogLevel: testFileLogLevelConstant},
		{name: "environment_overrides_file", fileLogLevel: testFileLogLevelConstant, environmentLogLevel: testEnvironmentLogLevelConstant, expectedLogLevel: testEnvironmentLogLevelConstant},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			tempDirectory := testInstance.TempDir()
			configurationFilePath := ""
			if len(testCase.fileLogLevel) > 0 {
				configurationFilePath = filepath.Join(tempDirectory, testConfigFileNameConstant)
				writeError := os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(testConfigContentTemplateConstant, testCase.fileLogLevel)), 0o600)
				require.NoError(testInstance, writeError)
			}
			if len(testCase.environmentLogLevel) > 0 {
				testInstance.Setenv(testEnvironmentPrefixConstant+"_COMMON_LOG_LEVEL", testCase.environmentLogLevel)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{tempDirectory})
			if len(testCase.embeddedLogLevel) > 0 {
				configurationLoader.SetEmbeddedConfiguration([]byte(fmt.Sprintf(testConfigContentTemplateConstant, testCase.embeddedLogLevel)), testConfigurationTypeConstant)
			}

			loadedConfiguration := configurationFixture{}
			metadata, loadError := configurationLoader.LoadConfiguration(configurationFilePath, map[string]any{testLogLevelKeyConstant: testDefaultLogLevelConstant}, &loadedConfiguration)
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedLogLevel, loadedConfiguration.Common.LogLevel)
			require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
		})
	}
}

func TestConfigurationLoaderFindsFileOnSearchPath(testInstance *testing.T) {
	firstDirectory := testInstance.TempDir()
	secondDirectory := testInstance.TempDir()
	configurationFilePath := filepath.Join(secondDirectory, testConfigFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, []byte(fmt.Sprintf(testConfigContentTemplateConstant, testFileLogLevelConstant)), 0o600))

	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{firstDirectory, secondDirectory})

	loadedConfiguration := configurationFixture{}
	metadata, loadError := configurationLoader.LoadConfiguration("", nil, &loadedConfiguration)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, testFileLogLevelConstant, loadedConfiguration.Common.LogLevel)
	require.Equal(testInstance, configurationFilePath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderDecodesTypedValues(testInstance *testing.T) {
	defaults := map[string]any{
		"tools.backoff": "500ms",
		"tools.mode":    "safe",
		"tools.hosts":   []string{"github.com"},
	}

	testCases := []struct {
		name             string
		environment      map[string]string
		expectedTools    configurationToolsFixture
		expectedFragment string
	}{
		{
			name:          "defaults",
			expectedTools: configurationToolsFixture{Backoff: 500 * time.Millisecond, Mode: "safe", Hosts: []string{"github.com"}},
		},
		{
			name: "environment_strings",
			environment: map[string]string{
				testEnvironmentPrefixConstant + "_TOOLS_BACKOFF": "2s",
				testEnvironmentPrefixConstant + "_TOOLS_MODE":    "FAST",
				testEnvironmentPrefixConstant + "_TOOLS_HOSTS":   "github.com,gitlab.com",
			},
			expectedTools: configurationToolsFixture{Backoff: 2 * time.Second, Mode: "fast", Hosts: []string{"github.com", "gitlab.com"}},
		},
		{
			name:             "invalid_text_value",
			environment:      map[string]string{testEnvironmentPrefixConstant + "_TOOLS_MODE": "reckless"},
			expectedFragment: "unknown mode reckless",
		},
		{
			name:             "invalid_duration",
			environment:      map[string]string{testEnvironmentPrefixConstant + "_TOOLS_BACKOFF": "soon"},
			expectedFragment: "failed to parse configuration",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			for environmentKey, environmentValue := range testCase.environment {
				testInstance.Setenv(environmentKey, environmentValue)
			}

			configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{testInstance.TempDir()})
			loadedConfiguration := configurationFixture{}
			_, loadError := configurationLoader.LoadConfiguration("", defaults, &loadedConfiguration)
			if len(testCase.expectedFragment) > 0 {
				require.ErrorContains(testInstance, loadError, testCase.expectedFragment)
				return
			}
			require.NoError(testInstance, loadError)
			require.Equal(testInstance, testCase.expectedTools, loadedConfiguration.Tools)
		})
	}
}

func TestConfigurationLoaderReportsMissingExplicitFile(testInstance *testing.T) {
	configurationLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)
	loadedConfiguration := configurationFixture{}
	_, loadError := configurationLoader.LoadConfiguration(filepath.Join(testInstance.TempDir(), "absent.yaml"), nil, &loadedConfiguration)
	require.ErrorContains(testInstance, loadError, "failed to read configuration")
}
