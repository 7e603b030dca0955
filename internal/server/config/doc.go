// Package config provides framesync-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation, every failure wraps domain.ErrInvalidConfig
//   - sanitize.go: masks the cluster key before the config is logged
//   - convert.go: maps sections onto coordinator, journal and discovery configs
//
// Configuration is loaded via internal/infra/confloader from a YAML
// file, FRAMESYNC_-prefixed environment variables and flag overrides.
package config
