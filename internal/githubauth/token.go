package githubauth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	pathutils "github.com/temirov/checkouts/internal/utils/path"
)

// Default credential sources.
const (
	DefaultTokenFilePath               = "~/.config/hub"
	DefaultIdentityEnvironmentVariable = "GITHUB_USERNAME"
)

const (
	hubGitHubHostKeyConstant                = "github.com"
	tokenFileSettingConstant                = "token file"
	identitySettingConstant                 = "identity environment variable"
	settingNotConfiguredMessageConstant     = "not configured"
	tokenFileEmptyTemplateConstant          = "token file %s is empty"
	identityMissingTemplateConstant         = "%s must be set to proceed"
	configErrorTemplateConstant             = "configuration error: %s: %v"
	configErrorWithoutCauseTemplateConstant = "configuration error: %s"
)

// Credentials holds the long-lived token and the account identity for a run.
type Credentials struct {
	Token    string
	Identity string
}

// Sources names where credentials are read from.
type Sources struct {
	TokenFilePath               string `mapstructure:"token_file"`
	IdentityEnvironmentVariable string `mapstructure:"identity_environment"`
}

// DefaultSources returns the conventional credential locations.
func DefaultSources() Sources {
	return Sources{
		TokenFilePath:               DefaultTokenFilePath,
		IdentityEnvironmentVariable: DefaultIdentityEnvironmentVariable,
	}
}

// ConfigError reports a missing or unusable credential source. It is fatal.
type ConfigError struct {
	Setting string
	Cause   error
}

// Error describes the configuration failure.
func (configError ConfigError) Error() string {
	if configError.Cause == nil {
		return fmt.Sprintf(configErrorWithoutCauseTemplateConstant, configError.Setting)
	}
	return fmt.Sprintf(configErrorTemplateConstant, configError.Setting, configError.Cause)
}

// Unwrap exposes the underlying cause.
func (configError ConfigError) Unwrap() error {
	return configError.Cause
}

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// FileReader reads the contents of a file path.
type FileReader func(path string) ([]byte, error)

// Loader resolves Credentials from a token file and an environment variable.
type Loader struct {
	environmentLookup EnvironmentLookup
	fileReader        FileReader
	homeExpander      *pathutils.HomeExpander
}

// NewLoader creates a loader with optional dependency overrides.
func NewLoader(environmentLookup EnvironmentLookup, fileReader FileReader, homeExpander *pathutils.HomeExpander) *Loader {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	if fileReader == nil {
		fileReader = os.ReadFile
	}
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}
	return &Loader{
		environmentLookup: environmentLookup,
		fileReader:        fileReader,
		homeExpander:      homeExpander,
	}
}

// Load reads the token file and the identity variable. Any missing source
// yields a ConfigError.
func (loader *Loader) Load(sources Sources) (Credentials, error) {
	token, tokenError := loader.loadToken(sources.TokenFilePath)
	if tokenError != nil {
		return Credentials{}, tokenError
	}

	identity, identityError := loader.loadIdentity(sources.IdentityEnvironmentVariable)
	if identityError != nil {
		return Credentials{}, identityError
	}

	return Credentials{Token: token, Identity: identity}, nil
}

func (loader *Loader) loadToken(tokenFilePath string) (string, error) {
	trimmedPath := strings.TrimSpace(tokenFilePath)
	if len(trimmedPath) == 0 {
		return "", ConfigError{Setting: tokenFileSettingConstant, Cause: errors.New(settingNotConfiguredMessageConstant)}
	}
	expandedPath := loader.homeExpander.Expand(trimmedPath)

	contents, readError := loader.fileReader(expandedPath)
	if readError != nil {
		return "", ConfigError{Setting: tokenFileSettingConstant, Cause: readError}
	}

	token := extractToken(contents)
	if len(token) == 0 {
		return "", ConfigError{Setting: tokenFileSettingConstant, Cause: fmt.Errorf(tokenFileEmptyTemplateConstant, expandedPath)}
	}
	return token, nil
}

func (loader *Loader) loadIdentity(variableName string) (string, error) {
	trimmedName := strings.TrimSpace(variableName)
	if len(trimmedName) == 0 {
		return "", ConfigError{Setting: identitySettingConstant, Cause: errors.New(settingNotConfiguredMessageConstant)}
	}
	value, found := loader.environmentLookup(trimmedName)
	trimmedValue := strings.TrimSpace(value)
	if !found || len(trimmedValue) == 0 {
		return "", ConfigError{Setting: identitySettingConstant, Cause: fmt.Errorf(identityMissingTemplateConstant, trimmedName)}
	}
	return trimmedValue, nil
}

type hubHostEntry struct {
	User       string `yaml:"user"`
	OAuthToken string `yaml:"oauth_token"`
}

// extractToken accepts either a bare token or the hub configuration layout.
func extractToken(contents []byte) string {
	var hubConfiguration map[string][]hubHostEntry
	if yaml.Unmarshal(contents, &hubConfiguration) == nil {
		for _, entry := range hubConfiguration[hubGitHubHostKeyConstant] {
			if token := strings.TrimSpace(entry.OAuthToken); len(token) > 0 {
				return token
			}
		}
		if len(hubConfiguration) > 0 {
			return ""
		}
	}
	return strings.TrimSpace(string(contents))
}
