// Package config holds framesync-cli defaults read from a YAML file.
package config

// CLIConfig is the configuration of framesync-cli. Flags and
// environment variables override every field.
type CLIConfig struct {
	// Admin is the coordinator admin address, host:port or URL.
	Admin string `yaml:"admin"`

	// Output is the default output format: table, json or yaml.
	Output string `yaml:"output"`

	// NodeConfig is the node configuration used by "framesync-cli node".
	NodeConfig string `yaml:"node_config"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Admin:  "127.0.0.1:7451",
		Output: "table",
	}
}
