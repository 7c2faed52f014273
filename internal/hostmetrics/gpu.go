package hostmetrics

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNvidiaSMI parses GPU metrics from nvidia-smi CSV output.
// Expected input is from:
//
//	nvidia-smi --query-gpu=name,utilization.gpu,memory.used,memory.total --format=csv,noheader,nounits
//
// Returns nil, nil if no GPU is available (empty output or an error
// indicator instead of CSV). Multi-GPU hosts report only the first device.
func ParseNvidiaSMI(output string) (*GPUMetrics, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "no devices") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "error") {
		return nil, nil
	}

	// First line only: name, utilization.gpu, memory.used, memory.total
	line := output
	if idx := strings.IndexByte(output, '\n'); idx >= 0 {
		line = output[:idx]
	}

	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return nil, fmt.Errorf("nvidia-smi output has insufficient fields: expected 4, got %d", len(fields))
	}

	gpu := &GPUMetrics{Name: strings.TrimSpace(fields[0])}

	utilStr := strings.TrimSpace(fields[1])
	if utilStr != "" && utilStr != "[N/A]" {
		util, err := strconv.ParseFloat(utilStr, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GPU utilization %q: %w", utilStr, err)
		}
		gpu.Percent = util
	}

	memUsedStr := strings.TrimSpace(fields[2])
	if memUsedStr != "" && memUsedStr != "[N/A]" {
		memUsed, err := strconv.ParseUint(memUsedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GPU memory used %q: %w", memUsedStr, err)
		}
		gpu.MemoryUsed = memUsed * 1024 * 1024 // MiB to bytes
	}

	memTotalStr := strings.TrimSpace(fields[3])
	if memTotalStr != "" && memTotalStr != "[N/A]" {
		memTotal, err := strconv.ParseUint(memTotalStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GPU memory total %q: %w", memTotalStr, err)
		}
		gpu.MemoryTotal = memTotal * 1024 * 1024
	}

	return gpu, nil
}
