package proxy

import (
	"slices"
	"strings"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// configMountPrefixes are container paths where nginx images keep their
// configuration.
var configMountPrefixes = []string{"/etc/nginx", "/config", "/data/nginx"}

// IsProxyContainer reports whether c looks like the reverse proxy.
func IsProxyContainer(c snapshot.Container) bool {
	key, value, _ := strings.Cut(RoleLabel, "=")
	if c.Labels[key] == value {
		return true
	}
	for _, n := range c.Names {
		n = strings.ToLower(n)
		if strings.Contains(n, "nginx") || strings.Contains(n, "proxy") {
			return true
		}
	}
	return false
}

// ConfigDirs returns the host sources of the proxy containers' config bind
// mounts, sorted and unique.
func ConfigDirs(containers []snapshot.Container) []string {
	var dirs []string
	for _, c := range containers {
		if !IsProxyContainer(c) {
			continue
		}
		for _, m := range c.Mounts {
			if m.Type != "bind" || m.Source == "" {
				continue
			}
			for _, p := range configMountPrefixes {
				if strings.HasPrefix(m.Destination, p) {
					dirs = append(dirs, m.Source)
					break
				}
			}
		}
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}
