package tools

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/attache/attache/pkg/fault"
)

// System monitor tools. All read-only.

// CPUUsageTool samples aggregate CPU utilization over an interval.
type CPUUsageTool struct{}

func (CPUUsageTool) Name() string                         { return "cpu_usage" }
func (CPUUsageTool) Dangerous() bool                      { return false }
func (CPUUsageTool) Validate(params map[string]any) error { return nil }

func (CPUUsageTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	interval := optionalFloatParam(params, "interval", 1.0)
	if interval <= 0 || interval > 10 {
		interval = 1.0
	}
	percents, err := cpu.PercentWithContext(ctx, time.Duration(interval*float64(time.Second)), false)
	if err != nil || len(percents) == 0 {
		return nil, fault.ToolFailed("sample cpu: %v", err)
	}
	counts, _ := cpu.CountsWithContext(ctx, true)
	return map[string]any{
		"percent":  percents[0],
		"cores":    counts,
		"interval": interval,
	}, nil
}

// MemoryUsageTool reports virtual memory statistics.
type MemoryUsageTool struct{}

func (MemoryUsageTool) Name() string                         { return "memory_usage" }
func (MemoryUsageTool) Dangerous() bool                      { return false }
func (MemoryUsageTool) Validate(params map[string]any) error { return nil }

func (MemoryUsageTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fault.ToolFailed("read memory stats: %v", err)
	}
	return map[string]any{
		"total_bytes":     vm.Total,
		"used_bytes":      vm.Used,
		"available_bytes": vm.Available,
		"percent":         vm.UsedPercent,
	}, nil
}

// DiskUsageTool reports usage for one mount point.
type DiskUsageTool struct{}

func (DiskUsageTool) Name() string                         { return "disk_usage" }
func (DiskUsageTool) Dangerous() bool                      { return false }
func (DiskUsageTool) Validate(params map[string]any) error { return nil }

func (DiskUsageTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	path := optionalStringParam(params, "path", defaultDiskPath())
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, fault.ToolFailed("read disk usage for %s: %v", path, err)
	}
	return map[string]any{
		"path":        usage.Path,
		"total_bytes": usage.Total,
		"used_bytes":  usage.Used,
		"free_bytes":  usage.Free,
		"percent":     usage.UsedPercent,
	}, nil
}

func defaultDiskPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

// ProcessListTool returns the top processes by cpu or memory.
type ProcessListTool struct{}

func (ProcessListTool) Name() string    { return "process_list" }
func (ProcessListTool) Dangerous() bool { return false }

func (ProcessListTool) Validate(params map[string]any) error {
	sortBy := optionalStringParam(params, "sort_by", "memory")
	if sortBy != "memory" && sortBy != "cpu" {
		return fault.BadInput("sort_by must be %q or %q", "memory", "cpu")
	}
	return nil
}

func (ProcessListTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	sortBy := optionalStringParam(params, "sort_by", "memory")
	limit := optionalIntParam(params, "limit", 10)
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fault.ToolFailed("list processes: %v", err)
	}

	type entry struct {
		PID    int32   `json:"pid"`
		Name   string  `json:"name"`
		CPU    float64 `json:"cpu_percent"`
		Memory float32 `json:"memory_percent"`
	}
	entries := make([]entry, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		entries = append(entries, entry{PID: p.Pid, Name: name, CPU: cpuPct, Memory: memPct})
	}

	sort.Slice(entries, func(i, j int) bool {
		if sortBy == "cpu" {
			return entries[i].CPU > entries[j].CPU
		}
		return entries[i].Memory > entries[j].Memory
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return map[string]any{"sort_by": sortBy, "processes": entries}, nil
}

// SystemInfoTool reports host platform details.
type SystemInfoTool struct{}

func (SystemInfoTool) Name() string                         { return "system_info" }
func (SystemInfoTool) Dangerous() bool                      { return false }
func (SystemInfoTool) Validate(params map[string]any) error { return nil }

func (SystemInfoTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fault.ToolFailed("read host info: %v", err)
	}
	return map[string]any{
		"hostname":       info.Hostname,
		"os":             info.OS,
		"platform":       info.Platform,
		"platform_ver":   info.PlatformVersion,
		"kernel_version": info.KernelVersion,
		"arch":           info.KernelArch,
		"uptime_seconds": info.Uptime,
		"go_version":     runtime.Version(),
	}, nil
}
