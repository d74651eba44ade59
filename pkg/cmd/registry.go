// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/sqlgems/pkg/registry"
)

// NewRegistry creates a registry with the built-in gems plus the gem plugins found under
// pluginsPath. Plugins replace built-in gems of the same name.
func NewRegistry(ctx context.Context, logger *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultGems()

	if pluginsPath == "" {
		return reg, nil
	}

	plugins, err := reg.LoadGemPlugins(pluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load gem plugins: %w", err)
	}

	for _, gem := range plugins {
		logger.InfoContext(ctx, "Registering gem plugin", "gem", gem.Name())
		reg.RegisterGem(gem)
	}

	return reg, nil
}
