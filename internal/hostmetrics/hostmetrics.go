// Package hostmetrics samples system-wide CPU, memory, disk, and optional
// GPU usage for the dashboard header. Sampling is independent of any
// container and runs on its own, coarser cadence.
package hostmetrics

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/icryo/backplane-tui/internal/logger"
)

// Metrics is one system-wide usage snapshot.
type Metrics struct {
	Time          time.Time
	CPUPercent    float64
	MemoryUsed    uint64
	MemoryTotal   uint64
	MemoryPercent float64
	DiskUsed      uint64
	DiskTotal     uint64
	DiskPercent   float64
	GPU           *GPUMetrics // nil if no GPU
}

// GPUMetrics holds GPU usage from nvidia-smi.
type GPUMetrics struct {
	Name        string
	Percent     float64
	MemoryUsed  uint64 // bytes
	MemoryTotal uint64 // bytes
}

// realFilesystems are the filesystem types counted toward disk totals.
// Overlay, tmpfs, and network mounts are excluded so container layers and
// virtual mounts don't inflate usage.
var realFilesystems = map[string]bool{
	"ext2": true, "ext3": true, "ext4": true,
	"xfs": true, "btrfs": true, "zfs": true,
	"ntfs": true, "vfat": true, "f2fs": true, "apfs": true,
}

// gpuQueryArgs matches the CSV query used for parsing in ParseNvidiaSMI.
var gpuQueryArgs = []string{
	"--query-gpu=name,utilization.gpu,memory.used,memory.total",
	"--format=csv,noheader,nounits",
}

// Sampler collects host metrics. GPU sampling shells out to nvidia-smi and
// is throttled independently because it is the most expensive probe.
type Sampler struct {
	gpuEvery   time.Duration
	lastGPU    time.Time
	cachedGPU  *GPUMetrics
	gpuMissing bool
	log        logger.Logger
}

// NewSampler creates a sampler that refreshes GPU data at most every gpuEvery.
func NewSampler(gpuEvery time.Duration) *Sampler {
	if gpuEvery <= 0 {
		gpuEvery = 5 * time.Second
	}
	return &Sampler{
		gpuEvery: gpuEvery,
		log:      logger.NewEnvLogger("[hostmetrics]"),
	}
}

// Sample collects one snapshot. Individual probe failures degrade to zero
// values for that probe rather than failing the snapshot; only a total
// failure returns an error.
func (s *Sampler) Sample(ctx context.Context) (Metrics, error) {
	m := Metrics{Time: time.Now()}

	cpuPercents, cpuErr := cpu.PercentWithContext(ctx, 0, false)
	if cpuErr == nil && len(cpuPercents) > 0 {
		m.CPUPercent = cpuPercents[0]
	}

	vm, memErr := mem.VirtualMemoryWithContext(ctx)
	if memErr == nil {
		m.MemoryUsed = vm.Used
		m.MemoryTotal = vm.Total
		m.MemoryPercent = vm.UsedPercent
	}

	diskErr := s.sampleDisks(ctx, &m)

	if cpuErr != nil && memErr != nil && diskErr != nil {
		return Metrics{}, cpuErr
	}

	m.GPU = s.sampleGPU(ctx)
	return m, nil
}

// sampleDisks sums usage across real local filesystems.
func (s *Sampler) sampleDisks(ctx context.Context, m *Metrics) error {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, p := range parts {
		if !realFilesystems[strings.ToLower(p.Fstype)] || seen[p.Device] {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		seen[p.Device] = true
		m.DiskUsed += usage.Used
		m.DiskTotal += usage.Total
	}
	if m.DiskTotal > 0 {
		m.DiskPercent = float64(m.DiskUsed) / float64(m.DiskTotal) * 100
	}
	return nil
}

// sampleGPU returns cached GPU metrics, refreshing via nvidia-smi when stale.
// A host with no nvidia-smi is remembered so it is probed only once.
func (s *Sampler) sampleGPU(ctx context.Context) *GPUMetrics {
	if s.gpuMissing {
		return nil
	}
	if time.Since(s.lastGPU) < s.gpuEvery {
		return s.cachedGPU
	}
	s.lastGPU = time.Now()

	out, err := exec.CommandContext(ctx, "nvidia-smi", gpuQueryArgs...).Output()
	if err != nil {
		s.gpuMissing = true
		s.cachedGPU = nil
		s.log.Debug("nvidia-smi unavailable: %v", err)
		return nil
	}

	gpu, err := ParseNvidiaSMI(string(out))
	if err != nil {
		s.log.Debug("nvidia-smi parse failed: %v", err)
		return s.cachedGPU
	}
	s.cachedGPU = gpu
	return s.cachedGPU
}
