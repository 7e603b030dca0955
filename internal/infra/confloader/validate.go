package confloader

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidateHostPort checks a "host:port" address. The host may be empty
// (all interfaces); the port must be numeric and within 0-65535, and
// zero is only accepted when allowZeroPort is set.
func ValidateHostPort(addr string, allowZeroPort bool) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port in %q", addr)
	}
	if n == 0 && !allowZeroPort {
		return fmt.Errorf("port 0 not allowed in %q", addr)
	}
	return nil
}

// ValidateGossip checks memberlist settings. Errors are prefixed with the
// offending key (bind_addr, bind_port or seeds).
func ValidateGossip(bindAddr string, bindPort int, seeds []string) error {
	if bindAddr != "" && net.ParseIP(bindAddr) == nil {
		return fmt.Errorf("bind_addr: %q is not an IP address", bindAddr)
	}
	if bindPort < 0 || bindPort > 65535 {
		return fmt.Errorf("bind_port: %d out of range", bindPort)
	}
	for _, seed := range seeds {
		if err := ValidateHostPort(seed, false); err != nil {
			return fmt.Errorf("seeds: %w", err)
		}
	}
	return nil
}

// ValidateLog checks a log level and format as accepted by logger.New.
// Errors are prefixed with level or format.
func ValidateLog(level, format string) error {
	switch strings.ToLower(level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("level: unknown %q", level)
	}
	switch strings.ToLower(format) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("format: unknown %q", format)
	}
	return nil
}
