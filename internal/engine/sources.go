package engine

import (
	"context"
	"sync"
	"time"

	"github.com/icryo/backplane-tui/internal/hostmetrics"
	"github.com/icryo/backplane-tui/internal/logger"
	"github.com/icryo/backplane-tui/internal/runtime"
)

// SourcesOptions sets the refresh cadences for the three producers.
type SourcesOptions struct {
	Inventory time.Duration
	Stats     time.Duration
	Host      time.Duration
}

// Sources runs the periodic producers: the inventory differ, the per-container
// stats poller, and the host sampler. Each runs on its own cadence in its own
// goroutine and publishes onto the shared queue; none of them touch the store
// directly. A slow cycle overlaps nothing: each loop finishes its pass before
// sleeping again, so a struggling daemon degrades freshness, not correctness.
type Sources struct {
	api     runtime.API
	sampler *hostmetrics.Sampler
	queue   *Queue
	opts    SourcesOptions
	log     logger.Logger

	// kick requests an immediate inventory refresh, used after lifecycle
	// commands so the list reflects the change before the next tick.
	kick chan struct{}

	mu       sync.Mutex
	lastSeen map[string]runtime.Container
	active   []string // ids of running or paused containers, for the stats loop
	down     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSources creates the producer set. Zero cadences fall back to defaults.
func NewSources(api runtime.API, sampler *hostmetrics.Sampler, queue *Queue, opts SourcesOptions) *Sources {
	if opts.Inventory <= 0 {
		opts.Inventory = 3 * time.Second
	}
	if opts.Stats <= 0 {
		opts.Stats = 2 * time.Second
	}
	if opts.Host <= 0 {
		opts.Host = 5 * time.Second
	}
	return &Sources{
		api:      api,
		sampler:  sampler,
		queue:    queue,
		opts:     opts,
		log:      logger.NewEnvLogger("[sources]"),
		kick:     make(chan struct{}, 1),
		lastSeen: make(map[string]runtime.Container),
	}
}

// Start launches the producer goroutines. The first inventory pass runs
// immediately so the dashboard is populated before the first tick elapses.
func (s *Sources) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(3)
	go s.inventoryLoop(ctx)
	go s.statsLoop(ctx)
	go s.hostLoop(ctx)
}

// Stop cancels all producers and waits for them to finish their current pass.
func (s *Sources) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// KickInventory schedules an immediate inventory refresh. Non-blocking; a
// refresh already pending absorbs the kick.
func (s *Sources) KickInventory() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Sources) inventoryLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Inventory)
	defer ticker.Stop()

	s.refreshInventory(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.kick:
		}
		s.refreshInventory(ctx)
	}
}

// refreshInventory lists all containers and publishes the delta against the
// previous pass: adds, updates for changed fields, removals for vanished ids,
// then a sync marker. A listing failure marks the daemon down without
// publishing removals; the containers are presumed still there.
func (s *Sources) refreshInventory(ctx context.Context) {
	now := time.Now()
	containers, err := s.api.ListContainers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.setDown(err.Error(), now)
		return
	}
	s.setUp(now)

	s.mu.Lock()
	seen := make(map[string]runtime.Container, len(containers))
	var active []string
	for _, c := range containers {
		seen[c.ID] = c
		if c.Active() {
			active = append(active, c.ID)
		}
		prev, known := s.lastSeen[c.ID]
		if !known {
			s.queue.Publish(ContainerAdded{Container: c, Time: now})
		} else if !containerEqual(prev, c) {
			s.queue.Publish(ContainerUpdated{Container: c, Time: now})
		}
	}
	for id := range s.lastSeen {
		if _, ok := seen[id]; !ok {
			s.queue.Publish(ContainerRemoved{ID: id, Time: now})
		}
	}
	s.lastSeen = seen
	s.active = active
	s.mu.Unlock()

	s.queue.Publish(InventorySynced{Time: now})
}

// containerEqual compares the fields the store renders. Ports and labels are
// compared element-wise; ordering from the daemon is stable enough that a
// reorder counts as a change without harm.
func containerEqual(a, b runtime.Container) bool {
	if a.Name != b.Name || a.Image != b.Image || a.State != b.State ||
		a.Status != b.Status || !a.Created.Equal(b.Created) ||
		len(a.Ports) != len(b.Ports) {
		return false
	}
	for i := range a.Ports {
		if a.Ports[i] != b.Ports[i] {
			return false
		}
	}
	return true
}

func (s *Sources) statsLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Stats)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.refreshStats(ctx)
	}
}

// refreshStats samples every active container concurrently. Each container
// fails independently: a not-found error is dropped (the inventory differ
// will remove it), anything else marks only that container's stats
// unavailable.
func (s *Sources) refreshStats(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, len(s.active))
	copy(ids, s.active)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sample, err := s.api.ContainerStats(ctx, id)
			if err != nil {
				if ctx.Err() != nil || s.api.IsNotFound(err) {
					return
				}
				s.log.Debug("stats for %s failed: %v", id, err)
				s.queue.Publish(StatsUnavailable{ID: id, Err: err.Error(), Time: time.Now()})
				return
			}
			s.queue.Publish(StatsUpdated{Sample: sample})
		}(id)
	}
	wg.Wait()
}

func (s *Sources) hostLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.Host)
	defer ticker.Stop()

	s.refreshHost(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.refreshHost(ctx)
	}
}

func (s *Sources) refreshHost(ctx context.Context) {
	m, err := s.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.queue.Publish(HostUnavailable{Err: err.Error(), Time: time.Now()})
		return
	}
	s.queue.Publish(HostUpdated{Metrics: m})
}

// setDown publishes DaemonDown once per outage; repeated failures while
// already down only refresh the pending banner event.
func (s *Sources) setDown(msg string, now time.Time) {
	s.mu.Lock()
	s.down = true
	s.mu.Unlock()
	s.log.Warn("daemon unreachable: %s", msg)
	s.queue.Publish(DaemonDown{Err: msg, Time: now})
}

func (s *Sources) setUp(now time.Time) {
	s.mu.Lock()
	wasDown := s.down
	s.down = false
	s.mu.Unlock()
	if wasDown {
		s.queue.Publish(DaemonBack{Time: now})
	}
}
