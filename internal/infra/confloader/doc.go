// Package confloader provides the configuration loading mechanism shared
// by the node and the coordinator.
//
// It uses koanf to merge sources and fsnotify to watch the config file
// for runtime reload.
//
// Priority (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (FRAMESYNC_ prefix)
//  3. Configuration file (YAML)
//  4. Default values
package confloader
