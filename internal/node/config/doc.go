// Package config provides node configuration for framesync.
//
//   - spec.go: NodeConfig struct definition
//   - default.go: default values
//   - verify.go: validation; the only fatal startup errors
//   - sanitize.go: log sanitization (hide the cluster key)
//   - load.go: file + env loading via internal/infra/confloader
package config
