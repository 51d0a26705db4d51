package resources

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/collector/file"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

const (
	pathMemInfo  = "/proc/meminfo"
	pathStat     = "/proc/stat"
	pathUptime   = "/proc/uptime"
	pathHostname = "/proc/sys/kernel/hostname"
	pathRelease  = "/proc/sys/kernel/osrelease"
)

var (
	dfCommand   = []string{"df", "-P", "-k", "-T"}
	ipCommand   = []string{"ip", "-j", "addr"}
	archCommand = []string{"uname", "-m"}
)

// procSampler reads a remote host through the executor.
type procSampler struct {
	ex     executor.Executor
	kv     *file.Parser
	lines  *file.Parser
	window time.Duration

	mu   sync.Mutex
	arch string
}

func newProcSampler(ex executor.Executor, fs hostfs.FS) *procSampler {
	return &procSampler{
		ex:     ex,
		kv:     file.NewParser(file.WithFS(fs), file.WithKVDelimiter(":"), file.WithSkipEmptyValues(true)),
		lines:  file.NewParser(file.WithFS(fs)),
		window: cpuSampleWindow,
	}
}

func (p *procSampler) sample(ctx context.Context) (*snapshot.HostResources, error) {
	r := &snapshot.HostResources{}

	cpu, err := p.cpu(ctx)
	if err != nil {
		return nil, err
	}
	r.CPUUsage = cpu

	if err := p.memory(ctx, r); err != nil {
		return nil, err
	}

	disks, root, err := p.disks(ctx)
	if err != nil {
		return nil, err
	}
	r.Disks = disks
	r.DiskUsage = root

	if r.Network, err = p.network(ctx); err != nil {
		return nil, err
	}
	if r.OS, err = p.os(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// cpu returns busy percent between two /proc/stat reads.
func (p *procSampler) cpu(ctx context.Context) (float64, error) {
	first, err := p.stat(ctx)
	if err != nil || first == nil {
		return 0, err
	}
	t := time.NewTimer(p.window)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.C:
	}
	second, err := p.stat(ctx)
	if err != nil || second == nil {
		return 0, err
	}
	return CPUPercent(first, second), nil
}

func (p *procSampler) stat(ctx context.Context) ([]uint64, error) {
	lines, err := p.lines.GetLines(ctx, pathStat)
	if err != nil {
		return nil, softFail(err, pathStat)
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "cpu ") {
			return ParseCPULine(l), nil
		}
	}
	return nil, nil
}

func (p *procSampler) memory(ctx context.Context, r *snapshot.HostResources) error {
	info, err := p.kv.GetMap(ctx, pathMemInfo)
	if err != nil {
		return softFail(err, pathMemInfo)
	}
	total := kib(info["MemTotal"])
	if total == 0 {
		return nil
	}
	r.TotalMemory = total
	r.MemoryUsage = total - min(total, kib(info["MemAvailable"]))
	return nil
}

func (p *procSampler) disks(ctx context.Context) ([]snapshot.Disk, float64, error) {
	res, err := p.ex.Execute(ctx, dfCommand)
	if err != nil {
		return nil, 0, err
	}
	if !res.Success() && res.Stdout == "" {
		slog.Debug("df failed", "exitCode", res.ExitCode)
		return nil, 0, nil
	}
	rows := ParseDF(res.Stdout)
	var root float64
	disks := make([]snapshot.Disk, 0, len(rows))
	for _, row := range rows {
		if row.Mount == "/" {
			root = percent(row.Total-row.Available, row.Total)
		}
		if includeDisk(row.FSType, row.Mount) {
			disks = append(disks, row.Disk)
		}
	}
	return disks, root, nil
}

func (p *procSampler) network(ctx context.Context) (map[string][]snapshot.Address, error) {
	res, err := p.ex.Execute(ctx, ipCommand)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		slog.Debug("ip addr failed", "exitCode", res.ExitCode)
		return nil, nil
	}
	return ParseIPAddr(res.Stdout), nil
}

func (p *procSampler) os(ctx context.Context) (*snapshot.OSInfo, error) {
	info := &snapshot.OSInfo{Platform: "linux"}

	for path, dst := range map[string]*string{pathHostname: &info.Hostname, pathRelease: &info.Release} {
		lines, err := p.lines.GetLines(ctx, path)
		if err != nil {
			if err := softFail(err, path); err != nil {
				return nil, err
			}
			continue
		}
		if len(lines) > 0 {
			*dst = lines[0]
		}
	}

	if lines, err := p.lines.GetLines(ctx, pathUptime); err != nil {
		if err := softFail(err, pathUptime); err != nil {
			return nil, err
		}
	} else if len(lines) > 0 {
		if f := strings.Fields(lines[0]); len(f) > 0 {
			info.Uptime, _ = strconv.ParseFloat(f[0], 64)
		}
	}

	arch, err := p.machine(ctx)
	if err != nil {
		return nil, err
	}
	info.Arch = arch
	return info, nil
}

// machine returns the cached hardware name.
func (p *procSampler) machine(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.arch != "" {
		return p.arch, nil
	}
	res, err := p.ex.Execute(ctx, archCommand)
	if err != nil {
		return "", err
	}
	if res.Success() {
		p.arch = strings.TrimSpace(res.Stdout)
	}
	return p.arch, nil
}

// softFail keeps timeouts and lost sessions as errors and logs the rest.
func softFail(err error, path string) error {
	if errors.IsCode(err, errors.ErrCodeTimeout) || errors.IsCode(err, errors.ErrCodeUnavailable) {
		return err
	}
	slog.Debug("failed to read host file", "path", path, "error", err)
	return nil
}

// kib converts a meminfo value such as "16318480 kB" to bytes.
func kib(v string) uint64 {
	f := strings.Fields(v)
	if len(f) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(f[0], 10, 64)
	if err != nil {
		return 0
	}
	return n * 1024
}

// ParseCPULine returns the counters of an aggregate /proc/stat cpu line.
func ParseCPULine(line string) []uint64 {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return nil
	}
	out := make([]uint64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}

// CPUPercent computes busy time between two samples; idle includes iowait.
func CPUPercent(a, b []uint64) float64 {
	if len(a) < 5 || len(b) < 5 {
		return 0
	}
	var totalA, totalB uint64
	for _, v := range a {
		totalA += v
	}
	for _, v := range b {
		totalB += v
	}
	idleA, idleB := a[3]+a[4], b[3]+b[4]
	if totalB <= totalA {
		return 0
	}
	dTotal := totalB - totalA
	dIdle := idleB - idleA
	if idleB < idleA || dIdle > dTotal {
		return 0
	}
	return round1(float64(dTotal-dIdle) / float64(dTotal) * 100)
}

// DFRow is one parsed `df -P -k -T` line.
type DFRow struct {
	snapshot.Disk
	Available uint64
}

// ParseDF parses `df -P -k -T` output. Sizes are converted to bytes.
//
//	Filesystem Type 1024-blocks Used Available Capacity Mounted on
//	/dev/sda1  ext4   102400000 5000000 90000000 6% /
func ParseDF(out string) []DFRow {
	var rows []DFRow
	for i, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 7 {
			continue
		}
		total, err1 := strconv.ParseUint(fields[2], 10, 64)
		used, err2 := strconv.ParseUint(fields[3], 10, 64)
		avail, err3 := strconv.ParseUint(fields[4], 10, 64)
		pct, err4 := strconv.ParseFloat(strings.TrimSuffix(fields[5], "%"), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		rows = append(rows, DFRow{
			Disk: snapshot.Disk{
				Device:     fields[0],
				FSType:     fields[1],
				Mount:      strings.Join(fields[6:], " "),
				Total:      total * 1024,
				Used:       used * 1024,
				UsePercent: pct,
			},
			Available: avail * 1024,
		})
	}
	return rows
}

type ipLink struct {
	Name  string `json:"ifname"`
	Addrs []struct {
		Family string `json:"family"`
		Local  string `json:"local"`
		Scope  string `json:"scope"`
	} `json:"addr_info"`
}

// ParseIPAddr parses `ip -j addr` output into addresses per interface.
// Loopback and address-less interfaces are omitted.
func ParseIPAddr(out string) map[string][]snapshot.Address {
	var links []ipLink
	if err := json.Unmarshal([]byte(out), &links); err != nil {
		slog.Debug("failed to decode ip output", "error", err)
		return nil
	}
	res := make(map[string][]snapshot.Address, len(links))
	for _, l := range links {
		if l.Name == "" || l.Name == "lo" {
			continue
		}
		var addrs []snapshot.Address
		for _, a := range l.Addrs {
			if a.Local == "" {
				continue
			}
			fam := "IPv4"
			if a.Family == "inet6" {
				fam = "IPv6"
			}
			addrs = append(addrs, snapshot.Address{Address: a.Local, Family: fam, Internal: a.Scope != "global"})
		}
		if len(addrs) > 0 {
			res[l.Name] = addrs
		}
	}
	return res
}
