package config

import (
	"fmt"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/infra/confloader"
)

// Load reads the server configuration from path (optional), the
// environment and overrides on top of Default, then verifies it.
func Load(path string, overrides map[string]any) (*ServerConfig, error) {
	cfg := Default()

	loader := confloader.NewLoader()
	if path != "" {
		if err := loader.LoadFile(path); err != nil {
			return nil, domain.ErrInvalidConfig.WithCause(err)
		}
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, domain.ErrInvalidConfig.WithCause(err)
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, domain.ErrInvalidConfig.WithCause(err)
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, domain.ErrInvalidConfig.WithCause(fmt.Errorf("unmarshal: %w", err))
	}

	if cfg.Server.Name == "" {
		name, err := domain.GenerateNodeID()
		if err != nil {
			return nil, fmt.Errorf("generate server name: %w", err)
		}
		cfg.Server.Name = name
	}

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
