package containers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

var pidPattern = regexp.MustCompile(`pid=(\d+)`)

// ParseSockets reads `ss -tulpnH` output into listening ports per PID.
//
//	tcp LISTEN 0 128 0.0.0.0:80 0.0.0.0:* users:(("nginx",pid=123,fd=4))
func ParseSockets(out string) map[int][]snapshot.Port {
	pids := make(map[int][]snapshot.Port)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		ip, port, ok := splitHostPort(fields[4])
		if !ok {
			continue
		}
		proto := fields[0]
		process := ""
		if len(fields) > 6 {
			process = strings.Join(fields[6:], " ")
		}
		for _, m := range pidPattern.FindAllStringSubmatch(process, -1) {
			pid, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if hasPort(pids[pid], port, proto) {
				continue
			}
			pids[pid] = append(pids[pid], snapshot.Port{
				HostIP:        ip,
				HostPort:      port,
				ContainerPort: port,
				Protocol:      proto,
			})
		}
	}
	return pids
}

func splitHostPort(local string) (string, int, bool) {
	i := strings.LastIndex(local, ":")
	if i < 0 {
		return "", 0, false
	}
	ip := local[:i]
	// link-local scoped addresses
	if strings.Contains(ip, "%") {
		return "", 0, false
	}
	port, err := strconv.Atoi(local[i+1:])
	if err != nil {
		return "", 0, false
	}
	ip = strings.Trim(ip, "[]")
	if ip == "*" || ip == "" || ip == "::" {
		ip = "0.0.0.0"
	}
	return ip, port, true
}

func hasPort(ports []snapshot.Port, port int, proto string) bool {
	for _, p := range ports {
		if p.HostPort == port && p.Protocol == proto {
			return true
		}
	}
	return false
}
