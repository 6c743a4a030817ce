package dispatch

import (
	"context"
	"fmt"

	apperrors "ai-junction/internal/common/errors"
	"ai-junction/internal/common/metrics"
	"ai-junction/internal/models"
)

// connection returns the cached handle for desc.ID, establishing it at most
// once across concurrent callers. Failed establishments are not cached.
func (d *Dispatcher) connection(ctx context.Context, desc models.BackendDescriptor) (*connection, error) {
	if conn, hit, err := d.cached(desc.ID); hit {
		return conn, err
	}

	ch := d.group.DoChan(desc.ID, func() (interface{}, error) {
		if conn, hit, err := d.cached(desc.ID); hit {
			return conn, err
		}

		// Shared by every waiter, so it must not die with the first caller.
		establishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		conn, err := d.establish(establishCtx, desc)
		if err != nil {
			return nil, err
		}
		return d.store(desc.ID, conn)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*connection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cached reports a hit or a tombstone for id.
func (d *Dispatcher) cached(id string) (*connection, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, gone := d.removed[id]; gone {
		return nil, true, apperrors.NewNotFoundError(id)
	}
	if conn, ok := d.conns[id]; ok {
		return conn, true, nil
	}
	return nil, false, nil
}

// store caches conn unless id was evicted while it was being established.
func (d *Dispatcher) store(id string, conn *connection) (*connection, error) {
	d.mu.Lock()
	if _, gone := d.removed[id]; gone {
		d.mu.Unlock()
		d.logger.Warn("Discarding connection established after eviction", map[string]interface{}{"id": id})
		return nil, apperrors.NewNotFoundError(id)
	}
	d.conns[id] = conn
	active := len(d.conns)
	d.mu.Unlock()

	metrics.ConnectionsEstablished.WithLabelValues(string(conn.backendType)).Inc()
	metrics.ConnectionsActive.Set(float64(active))
	d.logger.Info("Connection established", map[string]interface{}{
		"id":   id,
		"type": string(conn.backendType),
	})
	return conn, nil
}

// drop removes stale from the cache without tombstoning id. A newer entry
// stored by a concurrent caller is left alone.
func (d *Dispatcher) drop(id string, stale *connection) {
	d.mu.Lock()
	if d.conns[id] == stale {
		delete(d.conns, id)
	}
	active := len(d.conns)
	d.mu.Unlock()

	metrics.ConnectionsActive.Set(float64(active))
}

func (d *Dispatcher) establish(ctx context.Context, desc models.BackendDescriptor) (*connection, error) {
	if desc.Type == models.BackendTypeAPI {
		endpoint := desc.ConfigString(models.ConfigEndpoint)
		if endpoint == "" {
			return nil, apperrors.NewModuleResolutionFailedError(models.ConfigEndpoint,
				fmt.Errorf("backend %s has no endpoint", desc.ID))
		}
		return &connection{backendType: desc.Type, endpoint: endpoint}, nil
	}

	module := desc.ModuleName()
	factory, err := d.modules.Resolve(module)
	if err != nil {
		return nil, apperrors.NewModuleResolutionFailedError(module, err)
	}

	adapter, err := factory(ctx, desc)
	if err != nil {
		return nil, apperrors.NewModuleResolutionFailedError(module, err)
	}
	if adapter == nil {
		return nil, apperrors.NewModuleResolutionFailedError(module, fmt.Errorf("factory returned no adapter"))
	}
	return &connection{backendType: desc.Type, adapter: adapter}, nil
}
