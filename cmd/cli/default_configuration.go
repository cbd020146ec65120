package cli

import _ "embed"

// defaultConfigurationDocument seeds every tools.* and credentials.* key so
// environment overrides resolve even without a configuration file.
//
//go:embed default_config.yaml
var defaultConfigurationDocument []byte

// EmbeddedDefaultConfiguration returns a copy of the built-in configuration
// document together with its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), defaultConfigurationDocument...), configurationTypeConstant
}
