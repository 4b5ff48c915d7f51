// Package statsutil turns raw runtime stats samples into normalized percentages and
// human readable sizes.
package statsutil

import (
	"math"
	"strconv"

	"nfcunha/deckhand/core/models"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// Calculate normalizes a single stats sample. Samples without CPU or memory stats fail
// with models.ErrInvalidStatsFormat.
func Calculate(stats *models.RawStats) (*models.ContainerStats, error) {
	if stats == nil || stats.CPUStats == nil || stats.MemoryStats == nil {
		return nil, &models.Error{
			Kind:    models.ErrInvalidStatsFormat,
			Op:      "calculate stats",
			Message: "Invalid container stats format",
		}
	}

	return &models.ContainerStats{
		CPU: formatPercent(CPUPercent(stats)),
		Memory: models.MemoryUsage{
			Percent: formatPercent(MemoryPercent(stats)),
			Usage:   FormatBytes(stats.MemoryStats.Usage),
			Limit:   FormatBytes(stats.MemoryStats.Limit),
		},
	}, nil
}

// CPUPercent computes CPU usage between the preceding and the current sample. A negative
// delta after a counter reset is returned as is.
func CPUPercent(stats *models.RawStats) float64 {
	if stats.CPUStats == nil {
		return 0
	}

	var prevTotal, prevSystem float64
	if stats.PreCPUStats != nil {
		prevTotal = float64(stats.PreCPUStats.CPUUsage.TotalUsage)
		prevSystem = float64(stats.PreCPUStats.SystemUsage)
	}

	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - prevTotal
	systemDelta := float64(stats.CPUStats.SystemUsage) - prevSystem
	if systemDelta <= 0 {
		return 0
	}

	return (cpuDelta / systemDelta) * float64(cpuCount(stats)) * 100.0
}

func cpuCount(stats *models.RawStats) int {
	if n := int(stats.CPUStats.OnlineCPUs); n > 0 {
		return n
	}
	if n := len(stats.CPUStats.CPUUsage.PercpuUsage); n > 0 {
		return n
	}
	return 1
}

// MemoryPercent returns usage over limit. An unreported limit yields 0.
func MemoryPercent(stats *models.RawStats) float64 {
	if stats.MemoryStats == nil || stats.MemoryStats.Limit == 0 {
		return 0
	}
	return float64(stats.MemoryStats.Usage) / float64(stats.MemoryStats.Limit) * 100.0
}

// FormatBytes renders a size with the largest unit keeping the whole part under 1024,
// trimmed to at most two decimals. Zero renders as "0 MB".
func FormatBytes(bytes uint64) string {
	if bytes == 0 {
		return "0 MB"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}

	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + byteUnits[unit]
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetNetworkRx returns total received bytes across all network interfaces.
func GetNetworkRx(stats *models.RawStats) uint64 {
	var total uint64
	for _, v := range stats.Networks {
		total += v.RxBytes
	}
	return total
}

// GetNetworkTx returns total transmitted bytes across all network interfaces.
func GetNetworkTx(stats *models.RawStats) uint64 {
	var total uint64
	for _, v := range stats.Networks {
		total += v.TxBytes
	}
	return total
}

// GetBlockRead returns total bytes read from block devices.
func GetBlockRead(stats *models.RawStats) uint64 {
	var total uint64
	for _, entry := range stats.BlkioStats.IoServiceBytesRecursive {
		if entry.Op == "Read" || entry.Op == "read" {
			total += entry.Value
		}
	}
	return total
}

// GetBlockWrite returns total bytes written to block devices.
func GetBlockWrite(stats *models.RawStats) uint64 {
	var total uint64
	for _, entry := range stats.BlkioStats.IoServiceBytesRecursive {
		if entry.Op == "Write" || entry.Op == "write" {
			total += entry.Value
		}
	}
	return total
}
