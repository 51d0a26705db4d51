package resources

import (
	"context"
	"log/slog"
	"net"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// localSampler reads the agent's own host.
type localSampler struct{}

func (localSampler) sample(ctx context.Context) (*snapshot.HostResources, error) {
	r := &snapshot.HostResources{}

	if pct, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("failed to sample cpu", "error", err)
	} else if len(pct) > 0 {
		r.CPUUsage = round1(pct[0])
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		slog.Debug("failed to read memory", "error", err)
	} else {
		r.TotalMemory = vm.Total
		r.MemoryUsage = vm.Total - vm.Available
	}

	if u, err := disk.UsageWithContext(ctx, "/"); err != nil {
		slog.Debug("failed to stat root filesystem", "error", err)
	} else {
		r.DiskUsage = percent(u.Total-u.Free, u.Total)
	}

	r.OS = localOS(ctx)
	r.Disks = localDisks(ctx)
	r.Network = localNetwork(ctx)
	return r, nil
}

func localOS(ctx context.Context) *snapshot.OSInfo {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		slog.Debug("failed to read host info", "error", err)
		return &snapshot.OSInfo{}
	}
	return &snapshot.OSInfo{
		Hostname: info.Hostname,
		Platform: info.OS,
		Release:  info.KernelVersion,
		Arch:     info.KernelArch,
		Uptime:   float64(info.Uptime),
	}
}

func localDisks(ctx context.Context) []snapshot.Disk {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		slog.Debug("failed to list partitions", "error", err)
		return nil
	}
	out := make([]snapshot.Disk, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if seen[p.Mountpoint] || !includeDisk(p.Fstype, p.Mountpoint) {
			continue
		}
		seen[p.Mountpoint] = true
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		out = append(out, snapshot.Disk{
			Device:     p.Device,
			Mount:      p.Mountpoint,
			FSType:     p.Fstype,
			Total:      u.Total,
			Used:       u.Used,
			UsePercent: round1(u.UsedPercent),
		})
	}
	return out
}

func localNetwork(ctx context.Context) map[string][]snapshot.Address {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		slog.Debug("failed to list interfaces", "error", err)
		return nil
	}
	out := make(map[string][]snapshot.Address, len(ifaces))
	for _, iface := range ifaces {
		if iface.Name == "lo" {
			continue
		}
		var addrs []snapshot.Address
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip == nil {
				continue
			}
			addrs = append(addrs, snapshot.Address{
				Address:  ip.String(),
				Family:   family(ip),
				Internal: ip.IsLoopback() || ip.IsLinkLocalUnicast(),
			})
		}
		if len(addrs) > 0 {
			out[iface.Name] = addrs
		}
	}
	return out
}

func family(ip net.IP) string {
	if ip.To4() != nil {
		return "IPv4"
	}
	return "IPv6"
}
