package main

import (
	"context"
	"fmt"
	"os"

	"ai-junction/internal/models"
	"ai-junction/pkg/catalog"
)

type backendRegistry interface {
	Add(ctx context.Context, in models.NewDescriptor) (models.BackendDescriptor, error)
	List(ctx context.Context) ([]models.BackendDescriptor, error)
}

// loadCatalog adds every entry whose name is not yet registered.
func loadCatalog(ctx context.Context, c *catalog.Catalog, reg backendRegistry, dryRun bool) (added, skipped int, err error) {
	existing, err := reg.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	present := make(map[string]bool, len(existing))
	for _, d := range existing {
		present[d.Name] = true
	}

	for _, e := range c.Backends {
		if present[e.Name] {
			skipped++
			continue
		}
		if dryRun {
			fmt.Printf("would add %s (%s)\n", e.Name, e.Type)
			added++
			continue
		}

		d, err := reg.Add(ctx, models.NewDescriptor{
			Name:             e.Name,
			Type:             models.BackendType(e.Type),
			Description:      e.Description,
			PerformanceScore: e.PerformanceScore,
			ConnectionConfig: expandConfig(e.Config),
		})
		if err != nil {
			return added, skipped, fmt.Errorf("add %s: %w", e.Name, err)
		}
		fmt.Printf("added %s as %s\n", e.Name, d.ID)
		added++
	}
	return added, skipped, nil
}

// expandConfig substitutes ${VAR} placeholders in string values.
func expandConfig(cfg map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cfg))
	for k, v := range cfg {
		if s, ok := v.(string); ok {
			out[k] = os.ExpandEnv(s)
			continue
		}
		out[k] = v
	}
	return out
}
