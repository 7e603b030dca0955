package config

import (
	"fmt"

	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/infra/confloader"
)

// Load reads the node configuration from path (optional) and the
// environment on top of Default, generates a node ID when none is set
// and verifies the result.
func Load(path string, overrides map[string]any) (*NodeConfig, error) {
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

	if cfg.Node.ID == "" {
		id, err := domain.GenerateNodeID()
		if err != nil {
			return nil, fmt.Errorf("generate node id: %w", err)
		}
		cfg.Node.ID = id
	}

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
