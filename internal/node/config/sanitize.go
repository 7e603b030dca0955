package config

import "strings"

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *NodeConfig) *NodeConfig {
	sanitized := *cfg
	sanitized.Discovery.Seeds = append([]string(nil), cfg.Discovery.Seeds...)

	if sanitized.Security.ClusterKey != "" {
		sanitized.Security.ClusterKey = maskSecret(sanitized.Security.ClusterKey)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
