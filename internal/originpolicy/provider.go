package originpolicy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3E-Network/origin-gateway/internal/logging"
	"github.com/R3E-Network/origin-gateway/internal/metrics"
)

// Snapshot is an immutable view of the provider state. Fields must not be
// mutated after publication.
type Snapshot struct {
	List     AllowList
	Source   string
	LoadedAt time.Time
}

// Provider owns the live AllowList. Reload replaces the snapshot wholesale
// behind an atomic pointer, so request handlers always observe a complete
// list and never take a lock.
type Provider struct {
	source   Source
	defaults AllowList
	log      *logging.Logger

	mu      sync.Mutex // serializes reloads, not reads
	current atomic.Pointer[Snapshot]
}

// NewProvider creates a provider seeded with the defaults. Callers should
// Reload once before serving to pick up the configured source.
func NewProvider(source Source, defaults AllowList, log *logging.Logger) *Provider {
	p := &Provider{
		source:   source,
		defaults: defaults,
		log:      log,
	}
	p.current.Store(&Snapshot{
		List:     defaults,
		Source:   "defaults",
		LoadedAt: time.Now().UTC(),
	})
	metrics.SetAllowListSize(len(defaults))
	return p
}

// Current returns the active allowlist.
func (p *Provider) Current() AllowList {
	return p.current.Load().List
}

// Snapshot returns the active snapshot.
func (p *Provider) Snapshot() Snapshot {
	return *p.current.Load()
}

// Reload derives a fresh allowlist from the source and swaps it in. On a
// source error the current list stays live and the error is returned; a
// failed reload never widens or clears access.
func (p *Provider) Reload(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw, err := p.source.Load(ctx)
	if err != nil {
		metrics.RecordReload(p.source.Name(), false)
		p.log.WithContext(ctx).WithError(err).Warn("allowlist reload failed, keeping current list")
		return p.Snapshot(), err
	}

	list := Derive(raw, p.defaults)
	snapshot := Snapshot{
		List:     list,
		Source:   p.source.Name(),
		LoadedAt: time.Now().UTC(),
	}

	previous := p.Snapshot()
	p.current.Store(&snapshot)

	metrics.RecordReload(p.source.Name(), true)
	metrics.SetAllowListSize(len(list))

	if previous.List.String() != list.String() {
		p.log.WithContext(ctx).WithFields(map[string]interface{}{
			"origins": list.String(),
			"count":   len(list),
			"source":  p.source.Name(),
		}).Info("allowlist updated")
	}
	return snapshot, nil
}

// Watch reloads the allowlist every interval until ctx is done. Intended
// for dynamic sources; errors are logged by Reload and the previous list
// stays live.
func (p *Provider) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Reload(ctx)
		}
	}
}
