package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Probe checks one tier's liveness. A nil return means healthy.
type Probe func(ctx context.Context) error

// Status is a point-in-time view of tier health. Results are advisory
// only; nothing gates routing on them.
type Status struct {
	Tiers       map[string]bool      `json:"tiers"`
	LastChecked map[string]time.Time `json:"last_checked"`
	AllHealthy  bool                 `json:"all_healthy"`
}

// Monitor periodically probes every registered tier and caches the
// results. The polling loop is cancellable and restartable.
type Monitor struct {
	interval     time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger

	// onChange, if set, fires whenever a tier flips health state.
	onChange func(tier string, healthy bool)

	mutex       sync.Mutex
	probes      map[string]Probe
	healthy     map[string]bool
	lastChecked map[string]time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

// OnChange installs a hook invoked on every health flip. Set it before
// Start; it must not block.
func (m *Monitor) OnChange(hook func(tier string, healthy bool)) {
	m.onChange = hook
}

// NewMonitor creates a stopped monitor. probeTimeout bounds each
// individual probe; zero means 5 seconds.
func NewMonitor(interval, probeTimeout time.Duration, logger *slog.Logger) *Monitor {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		interval:     interval,
		probeTimeout: probeTimeout,
		logger:       logger,
		probes:       make(map[string]Probe),
		healthy:      make(map[string]bool),
		lastChecked:  make(map[string]time.Time),
	}
}

// RegisterProbe adds or replaces the probe for a tier.
func (m *Monitor) RegisterProbe(name string, probe Probe) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.probes[name] = probe
}

// CheckTier probes a single tier, returning false rather than
// propagating any probe error. Unknown tiers are unhealthy.
func (m *Monitor) CheckTier(ctx context.Context, name string) bool {
	m.mutex.Lock()
	probe, exists := m.probes[name]
	timeout := m.probeTimeout
	m.mutex.Unlock()

	if !exists {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := probe(probeCtx); err != nil {
		m.logger.Debug("probe failed",
			slog.String("tier", name),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// CheckAllTiers probes every registered tier concurrently and updates
// the cached results. The returned map always has an entry per tier.
func (m *Monitor) CheckAllTiers(ctx context.Context) map[string]bool {
	names := m.tierNames()

	results := make(map[string]bool, len(names))
	var resultsMu sync.Mutex

	g, probeCtx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			healthy := m.CheckTier(probeCtx, name)
			resultsMu.Lock()
			results[name] = healthy
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.cache(results)
	return results
}

// Status returns the most recently cached health view.
func (m *Monitor) Status() Status {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	status := Status{
		Tiers:       make(map[string]bool, len(m.probes)),
		LastChecked: make(map[string]time.Time, len(m.lastChecked)),
		AllHealthy:  len(m.probes) > 0,
	}

	for name := range m.probes {
		healthy := m.healthy[name]
		status.Tiers[name] = healthy
		if !healthy {
			status.AllHealthy = false
		}
	}
	for name, t := range m.lastChecked {
		status.LastChecked[name] = t
	}

	return status
}

// Start launches the polling loop. A second Start while running is a
// no-op. The loop stops when ctx is cancelled or Stop is called, and
// the monitor can be started again afterwards.
func (m *Monitor) Start(ctx context.Context) {
	m.mutex.Lock()
	if m.cancel != nil {
		m.mutex.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mutex.Unlock()

	go m.run(runCtx, done)
}

// Stop cancels the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mutex.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.logger.Info("health monitor started",
		slog.Duration("interval", m.interval))

	// First sweep immediately, then on every tick.
	m.CheckAllTiers(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.CheckAllTiers(ctx)
		}
	}
}

// cache stores sweep results and logs tiers that changed state.
func (m *Monitor) cache(results map[string]bool) {
	now := time.Now()

	m.mutex.Lock()
	changed := make(map[string]bool)
	for name, healthy := range results {
		if previous, seen := m.healthy[name]; !seen || previous != healthy {
			changed[name] = healthy
		}
		m.healthy[name] = healthy
		m.lastChecked[name] = now
	}
	m.mutex.Unlock()

	for name, healthy := range changed {
		if healthy {
			m.logger.Info("tier is back up", slog.String("tier", name))
		} else {
			m.logger.Warn("tier is down", slog.String("tier", name))
		}
		if m.onChange != nil {
			m.onChange(name, healthy)
		}
	}
}

func (m *Monitor) tierNames() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
