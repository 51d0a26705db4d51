package resources

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/cns-node-agent/pkg/config"
	"github.com/NVIDIA/cns-node-agent/pkg/errors"
	"github.com/NVIDIA/cns-node-agent/pkg/executor"
	"github.com/NVIDIA/cns-node-agent/pkg/executor/executortest"
	"github.com/NVIDIA/cns-node-agent/pkg/hostfs"
	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

const dfOutput = `Filesystem     Type     1024-blocks     Used Available Capacity Mounted on
/dev/sda2      ext4       100000000 40000000  55000000      43% /
tmpfs          tmpfs        8000000        0   8000000       0% /run
/dev/sdb1      xfs        200000000 10000000 190000000       5% /mnt/data disk
overlay        overlay    100000000 40000000  55000000      43% /var/lib/containers/storage/overlay/abc/merged
/dev/sdc1      ext4         1000000   500000    500000      50% /var/lib/containers/storage
`

const ipOutput = `[
 {"ifindex":1,"ifname":"lo","addr_info":[{"family":"inet","local":"127.0.0.1","scope":"host"}]},
 {"ifindex":2,"ifname":"eth0","addr_info":[
   {"family":"inet","local":"192.168.1.10","prefixlen":24,"scope":"global"},
   {"family":"inet6","local":"fe80::1","prefixlen":64,"scope":"link"}]},
 {"ifindex":3,"ifname":"podman0","addr_info":[]}
]`

func remoteFake(t *testing.T) *executortest.Fake {
	t.Helper()
	var statReads atomic.Int32
	f := executortest.New()
	f.SetTarget(config.TargetRemote)
	f.Handler = func(argv []string, _ string) (*executor.Result, error) {
		switch argv[0] {
		case "df":
			return &executor.Result{Stdout: dfOutput}, nil
		case "ip":
			return &executor.Result{Stdout: ipOutput}, nil
		case "uname":
			return &executor.Result{Stdout: "x86_64\n"}, nil
		}
		switch argv[len(argv)-1] {
		case pathStat:
			if statReads.Add(1) == 1 {
				return &executor.Result{Stdout: "cpu  100 0 100 700 100 0 0 0 0 0\ncpu0 1 1 1 1 1\n"}, nil
			}
			return &executor.Result{Stdout: "cpu  150 0 150 750 150 0 0 0 0 0\n"}, nil
		case pathMemInfo:
			return &executor.Result{Stdout: "MemTotal:       16000000 kB\nMemFree:         1000000 kB\nMemAvailable:    4000000 kB\n"}, nil
		case pathUptime:
			return &executor.Result{Stdout: "12345.67 54321.00\n"}, nil
		case pathHostname:
			return &executor.Result{Stdout: "node-1\n"}, nil
		case pathRelease:
			return &executor.Result{Stdout: "6.8.0-45-generic\n"}, nil
		}
		return &executor.Result{ExitCode: 1}, nil
	}
	return f
}

func TestCollectRemote(t *testing.T) {
	f := remoteFake(t)
	c := New(f, hostfs.New(f))
	c.s.(*procSampler).window = time.Millisecond

	r, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 50.0, r.CPUUsage)
	assert.Equal(t, uint64(16000000*1024), r.TotalMemory)
	assert.Equal(t, uint64(12000000*1024), r.MemoryUsage)
	assert.Equal(t, 45.0, r.DiskUsage)

	require.NotNil(t, r.OS)
	assert.Equal(t, &snapshot.OSInfo{
		Hostname: "node-1",
		Platform: "linux",
		Release:  "6.8.0-45-generic",
		Arch:     "x86_64",
		Uptime:   12345.67,
	}, r.OS)

	require.Len(t, r.Disks, 2)
	assert.Equal(t, "/", r.Disks[0].Mount)
	assert.Equal(t, "/mnt/data disk", r.Disks[1].Mount)

	assert.Equal(t, map[string][]snapshot.Address{
		"eth0": {
			{Address: "192.168.1.10", Family: "IPv4", Internal: false},
			{Address: "fe80::1", Family: "IPv6", Internal: true},
		},
	}, r.Network)

	assert.Equal(t, 1, f.CallCount("uname -m"))
	_, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.CallCount("uname -m"), "arch is cached")
}

func TestCollectRemoteUnavailable(t *testing.T) {
	f := executortest.New()
	f.SetTarget(config.TargetRemote)
	f.Handler = func([]string, string) (*executor.Result, error) {
		return nil, errors.New(errors.ErrCodeUnavailable, "ssh session not established")
	}
	_, err := New(f, hostfs.New(f)).Collect(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
}

func TestCollectRemoteMissingToolsDegrade(t *testing.T) {
	f := executortest.New()
	f.SetTarget(config.TargetRemote)
	c := New(f, hostfs.New(f))
	r, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, r.Disks)
	assert.NotNil(t, r.Network)
	assert.Zero(t, r.TotalMemory)
}

func TestCollectLocal(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("local sampling is exercised on linux")
	}
	r, err := New(executortest.New(), hostfs.NewLocal()).Collect(context.Background())
	require.NoError(t, err)
	assert.Positive(t, r.TotalMemory)
	assert.GreaterOrEqual(t, r.CPUUsage, 0.0)
	assert.NotNil(t, r.OS)
	assert.NotContains(t, r.Network, "lo")
}

func TestCPUPercent(t *testing.T) {
	tests := []struct {
		name string
		a, b []uint64
		want float64
	}{
		{"half busy", []uint64{100, 0, 100, 700, 100}, []uint64{150, 0, 150, 750, 150}, 50},
		{"idle", []uint64{0, 0, 0, 100, 0}, []uint64{0, 0, 0, 200, 0}, 0},
		{"no progress", []uint64{1, 1, 1, 1, 1}, []uint64{1, 1, 1, 1, 1}, 0},
		{"short", []uint64{1, 2}, []uint64{3, 4}, 0},
		{"counter reset", []uint64{100, 0, 100, 700, 100}, []uint64{1, 0, 1, 1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CPUPercent(tt.a, tt.b))
		})
	}
}

func TestParseCPULine(t *testing.T) {
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ParseCPULine("cpu  1 2 3 4 5"))
	assert.Nil(t, ParseCPULine("cpu 1 2"))
	assert.Nil(t, ParseCPULine("cpu a b c d e"))
}

func TestParseDF(t *testing.T) {
	rows := ParseDF(dfOutput + "short line\n")
	require.Len(t, rows, 5)
	assert.Equal(t, uint64(100000000*1024), rows[0].Total)
	assert.Equal(t, uint64(55000000*1024), rows[0].Available)
	assert.Equal(t, 43.0, rows[0].UsePercent)
	assert.False(t, includeDisk(rows[1].FSType, rows[1].Mount))
	assert.False(t, includeDisk(rows[4].FSType, rows[4].Mount))
}

func TestParseIPAddrMalformed(t *testing.T) {
	assert.Nil(t, ParseIPAddr("not json"))
}
