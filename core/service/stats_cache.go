package service

import (
	"context"
	"sync"
	"time"

	"nfcunha/deckhand/core/models"
	"nfcunha/deckhand/utils/statsutil"

	"github.com/sirupsen/logrus"
)

// ResourceSample is the numeric form of one normalized stats sample.
type ResourceSample struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsage   uint64  `json:"memory_usage"`
	MemoryLimit   uint64  `json:"memory_limit"`
	MemoryPercent float64 `json:"memory_percent"`
	NetworkRx     uint64  `json:"network_rx"`
	NetworkTx     uint64  `json:"network_tx"`
	BlockRead     uint64  `json:"block_read"`
	BlockWrite    uint64  `json:"block_write"`
}

// DashboardSummary represents aggregate resource usage of running containers.
type DashboardSummary struct {
	TotalCPUPercent    float64   `json:"total_cpu_percent"`
	TotalMemoryUsage   uint64    `json:"total_memory_usage"`
	TotalMemoryLimit   uint64    `json:"total_memory_limit"`
	TotalMemoryPercent float64   `json:"total_memory_percent"`
	TotalNetworkRx     uint64    `json:"total_network_rx"`
	TotalNetworkTx     uint64    `json:"total_network_tx"`
	ContainerCount     int       `json:"container_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Sample takes one raw stats sample of a container and keeps it in numeric form.
func Sample(ctx context.Context, runtime ContainerRuntime, containerID string) (*ResourceSample, error) {
	raw, err := runtime.GetRawStats(ctx, containerID)
	if err != nil {
		return nil, err
	}
	if raw.CPUStats == nil || raw.MemoryStats == nil {
		return nil, models.NewError(models.ErrInvalidStatsFormat, "sample stats", nil)
	}

	return &ResourceSample{
		CPUPercent:    statsutil.Round2(statsutil.CPUPercent(raw)),
		MemoryUsage:   raw.MemoryStats.Usage,
		MemoryLimit:   raw.MemoryStats.Limit,
		MemoryPercent: statsutil.Round2(statsutil.MemoryPercent(raw)),
		NetworkRx:     statsutil.GetNetworkRx(raw),
		NetworkTx:     statsutil.GetNetworkTx(raw),
		BlockRead:     statsutil.GetBlockRead(raw),
		BlockWrite:    statsutil.GetBlockWrite(raw),
	}, nil
}

// StatsCache keeps per-container samples and the dashboard summary, refreshed in the background.
type StatsCache struct {
	runtime  ContainerRuntime
	interval time.Duration
	logger   *logrus.Logger

	mu               sync.RWMutex
	containerStats   map[string]*ResourceSample // containerID -> sample
	dashboardSummary *DashboardSummary
}

// NewStatsCache creates a stats cache. Call Run to start refreshing.
func NewStatsCache(runtime ContainerRuntime, interval time.Duration, logger *logrus.Logger) *StatsCache {
	return &StatsCache{
		runtime:        runtime,
		interval:       interval,
		logger:         logger,
		containerStats: make(map[string]*ResourceSample),
	}
}

// GetContainerStats returns the cached sample of a container, nil if none.
func (c *StatsCache) GetContainerStats(containerID string) *ResourceSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.containerStats[containerID]
}

// GetDashboardSummary returns a copy of the cached summary.
func (c *StatsCache) GetDashboardSummary() *DashboardSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.dashboardSummary == nil {
		return &DashboardSummary{}
	}
	summary := *c.dashboardSummary
	return &summary
}

// Run refreshes the cache every interval until ctx is done.
func (c *StatsCache) Run(ctx context.Context) {
	c.Refresh(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// Refresh samples every running container once and replaces the cache content.
func (c *StatsCache) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.interval+5*time.Second)
	defer cancel()

	containers, err := c.runtime.ListContainers(ctx, false)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to list containers for stats cache")
		return
	}

	type statsResult struct {
		containerID string
		sample      *ResourceSample
		err         error
	}

	results := make(chan statsResult, len(containers))
	var wg sync.WaitGroup

	for _, ctr := range containers {
		wg.Add(1)
		go func(containerID string) {
			defer wg.Done()
			sample, err := Sample(ctx, c.runtime, containerID)
			results <- statsResult{containerID: containerID, sample: sample, err: err}
		}(ctr.ID)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	newStats := make(map[string]*ResourceSample, len(containers))
	summary := &DashboardSummary{UpdatedAt: time.Now()}

	for result := range results {
		if result.err != nil {
			c.logger.WithFields(logrus.Fields{
				"container_id": result.containerID,
				"error":        result.err,
			}).Debug("Failed to sample container stats")
			continue
		}

		newStats[result.containerID] = result.sample
		summary.TotalCPUPercent += result.sample.CPUPercent
		summary.TotalMemoryUsage += result.sample.MemoryUsage
		summary.TotalMemoryLimit += result.sample.MemoryLimit
		summary.TotalNetworkRx += result.sample.NetworkRx
		summary.TotalNetworkTx += result.sample.NetworkTx
		summary.ContainerCount++
	}

	if summary.TotalMemoryLimit > 0 {
		summary.TotalMemoryPercent = statsutil.Round2(float64(summary.TotalMemoryUsage) / float64(summary.TotalMemoryLimit) * 100.0)
	}
	summary.TotalCPUPercent = statsutil.Round2(summary.TotalCPUPercent)

	c.mu.Lock()
	c.containerStats = newStats
	c.dashboardSummary = summary
	c.mu.Unlock()
}
