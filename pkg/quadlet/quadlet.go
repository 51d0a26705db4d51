// Package quadlet extracts dependency directives from quadlet and systemd
// unit files.
package quadlet

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

// Source types.
const (
	TypeContainer = "container"
	TypePod       = "pod"
	TypeKube      = "kube"
	TypeService   = "service"
	TypeUnknown   = "unknown"
)

// unitExts are the file extensions that carry unit directives.
var unitExts = map[string]bool{
	".container": true,
	".pod":       true,
	".kube":      true,
	".volume":    true,
	".network":   true,
	".service":   true,
}

// IsUnitFile reports whether path names a unit file worth parsing.
func IsUnitFile(path string) bool {
	return unitExts[filepath.Ext(path)]
}

// ServiceName returns the systemd service generated for a quadlet file:
// web.container -> web.service.
func ServiceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".service"
}

// Parse extracts directives from unit file content.
func Parse(content string) (*snapshot.Directives, error) {
	opts, err := unit.DeserializeOptions(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit file: %w", err)
	}

	d := &snapshot.Directives{
		SourceType:       DetectSourceType(content),
		Requires:         []string{},
		After:            []string{},
		Wants:            []string{},
		BindsTo:          []string{},
		Conflicts:        []string{},
		Environment:      map[string]string{},
		EnvironmentFiles: []string{},
		Volumes:          []string{},
		PublishPorts:     []snapshot.PublishPort{},
		WantedBy:         []string{},
		RequiredBy:       []string{},
	}

	for _, o := range opts {
		value := strings.TrimSpace(o.Value)
		if value == "" {
			continue
		}
		key := strings.ToLower(o.Name)
		switch strings.ToLower(o.Section) {
		case "unit":
			applyUnit(d, key, value)
		case "container", "x-container":
			applyContainer(d, key, value)
		case "pod":
			applyPod(d, key, value)
		case "kube":
			switch key {
			case "yaml":
				d.KubeYaml = value
			case "autoupdate":
				d.AutoUpdate = value
			}
		case "install":
			switch key {
			case "wantedby":
				d.WantedBy = ServiceList(value)
			case "requiredby":
				d.RequiredBy = ServiceList(value)
			}
		case "service":
			if key == "sourcepath" {
				d.SourceFile = value
			}
		}
	}
	return d, nil
}

func applyUnit(d *snapshot.Directives, key, value string) {
	switch key {
	case "requires":
		d.Requires = append(d.Requires, ServiceList(value)...)
	case "after":
		d.After = append(d.After, ServiceList(value)...)
	case "wants":
		d.Wants = append(d.Wants, ServiceList(value)...)
	case "bindsto":
		d.BindsTo = append(d.BindsTo, ServiceList(value)...)
	case "conflicts":
		d.Conflicts = append(d.Conflicts, ServiceList(value)...)
	case "description":
		d.Description = value
	case "sourcepath":
		d.SourceFile = value
	}
}

func applyContainer(d *snapshot.Directives, key, value string) {
	switch key {
	case "containername":
		d.ContainerName = value
	case "image":
		d.Image = value
	case "pod":
		d.Pod = strings.ReplaceAll(value, ".pod", "")
	case "environment":
		if k, v, ok := strings.Cut(value, "="); ok {
			d.Environment[k] = v
		}
	case "environmentfile":
		d.EnvironmentFiles = append(d.EnvironmentFiles, value)
	case "volume":
		d.Volumes = append(d.Volumes, value)
	}
}

func applyPod(d *snapshot.Directives, key, value string) {
	switch key {
	case "podname":
		d.PodName = value
	case "publishport":
		d.PublishPorts = append(d.PublishPorts, ParsePublishPort(value))
	}
}

// DetectSourceType classifies unit content by its sections.
func DetectSourceType(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "[container]"):
		return TypeContainer
	case strings.Contains(lower, "[pod]"):
		return TypePod
	case strings.Contains(lower, "[kube]"):
		return TypeKube
	case strings.Contains(lower, "[unit]") && strings.Contains(lower, "[service]"):
		return TypeService
	default:
		return TypeUnknown
	}
}

// ParsePublishPort parses "[ip:]hostPort:containerPort[/proto]" or a bare port.
func ParsePublishPort(value string) snapshot.PublishPort {
	p := snapshot.PublishPort{Protocol: "tcp"}

	portPart := value
	if i := strings.LastIndex(value, "/"); i >= 0 {
		portPart = value[:i]
		p.Protocol = strings.ToLower(value[i+1:])
	}

	parts := strings.Split(portPart, ":")
	switch len(parts) {
	case 3:
		p.HostIP = parts[0]
		hp, err1 := strconv.Atoi(parts[1])
		cp, err2 := strconv.Atoi(parts[2])
		if err1 == nil && err2 == nil {
			p.HostPort, p.ContainerPort = hp, cp
		}
	case 2:
		hp, err1 := strconv.Atoi(parts[0])
		cp, err2 := strconv.Atoi(parts[1])
		if err1 == nil && err2 == nil {
			p.HostPort, p.ContainerPort = hp, cp
		}
	case 1:
		if port, err := strconv.Atoi(parts[0]); err == nil {
			p.HostPort, p.ContainerPort = port, port
		}
	}
	return p
}

var listSep = regexp.MustCompile(`[,\s]+`)

// ServiceList splits a comma or space separated unit list, adding the
// .service suffix where missing.
func ServiceList(value string) []string {
	out := []string{}
	for _, item := range listSep.Split(value, -1) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.HasSuffix(item, ".service") {
			item += ".service"
		}
		out = append(out, item)
	}
	return out
}
