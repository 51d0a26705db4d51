// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import "fmt"

// Domain names one synchronized slice of node state.
type Domain string

const (
	Containers Domain = "containers"
	Services   Domain = "services"
	Volumes    Domain = "volumes"
	Files      Domain = "files"
	Resources  Domain = "resources"
	Proxy      Domain = "proxy"
)

// Domains lists every domain in publish order.
var Domains = []Domain{Containers, Services, Volumes, Files, Resources, Proxy}

// ParseDomain converts a string to a Domain.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Port is a normalized published or detected port.
type Port struct {
	HostIP        string `json:"host_ip,omitempty" yaml:"host_ip,omitempty"`
	HostPort      int    `json:"host_port" yaml:"host_port"`
	ContainerPort int    `json:"container_port" yaml:"container_port"`
	Protocol      string `json:"protocol" yaml:"protocol"`
}

// Mount is a container mount as reported by inspect.
type Mount struct {
	Type        string `json:"Type" yaml:"type"`
	Name        string `json:"Name,omitempty" yaml:"name,omitempty"`
	Source      string `json:"Source" yaml:"source"`
	Destination string `json:"Destination" yaml:"destination"`
	RW          bool   `json:"RW" yaml:"rw"`
}

// Container is one non-infra container.
type Container struct {
	ID            string            `json:"id" yaml:"id"`
	Names         []string          `json:"names" yaml:"names"`
	Image         string            `json:"image" yaml:"image"`
	ImageName     string            `json:"imageName,omitempty" yaml:"imageName,omitempty"`
	ImageTag      string            `json:"imageTag,omitempty" yaml:"imageTag,omitempty"`
	State         string            `json:"state" yaml:"state"`
	Status        string            `json:"status" yaml:"status"`
	Created       int64             `json:"created" yaml:"created"`
	Ports         []Port            `json:"ports" yaml:"ports"`
	Mounts        []Mount           `json:"mounts" yaml:"mounts"`
	Labels        map[string]string `json:"labels" yaml:"labels"`
	Networks      []string          `json:"networks" yaml:"networks"`
	PodID         string            `json:"podId" yaml:"podId"`
	PodName       string            `json:"podName" yaml:"podName"`
	IsInfra       bool              `json:"isInfra" yaml:"isInfra"`
	IsHostNetwork bool              `json:"isHostNetwork" yaml:"isHostNetwork"`
	Pid           int               `json:"pid" yaml:"pid"`
}

// Name returns the primary container name, or the short id.
func (c Container) Name() string {
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// Service is one systemd user service.
type Service struct {
	Name           string `json:"name" yaml:"name"`
	ID             string `json:"id" yaml:"id"`
	ActiveState    string `json:"activeState" yaml:"activeState"`
	SubState       string `json:"subState" yaml:"subState"`
	LoadState      string `json:"loadState" yaml:"loadState"`
	Description    string `json:"description" yaml:"description"`
	Path           string `json:"path" yaml:"path"`
	Active         bool   `json:"active" yaml:"active"`
	IsReverseProxy bool   `json:"isReverseProxy" yaml:"isReverseProxy"`
	IsServiceBay   bool   `json:"isServiceBay" yaml:"isServiceBay"`
}

// VolumeUser is a container that mounts a volume.
type VolumeUser struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Volume is one podman named volume.
type Volume struct {
	Name       string            `json:"Name" yaml:"name"`
	Driver     string            `json:"Driver" yaml:"driver"`
	Mountpoint string            `json:"Mountpoint" yaml:"mountpoint"`
	CreatedAt  string            `json:"CreatedAt,omitempty" yaml:"createdAt,omitempty"`
	Scope      string            `json:"Scope,omitempty" yaml:"scope,omitempty"`
	Labels     map[string]string `json:"Labels" yaml:"labels"`
	Options    map[string]string `json:"Options,omitempty" yaml:"options,omitempty"`
	UsedBy     []VolumeUser      `json:"UsedBy" yaml:"usedBy"`
}

// File is one watched config file.
type File struct {
	Path     string  `json:"path" yaml:"path"`
	Content  string  `json:"content" yaml:"content"`
	Modified float64 `json:"modified" yaml:"modified"`
	// Directives is set for quadlet unit files.
	Directives *Directives `json:"directives,omitempty" yaml:"directives,omitempty"`
}

// FileSet maps absolute path to file.
type FileSet map[string]File

// PublishPort is a parsed PublishPort directive.
type PublishPort struct {
	HostIP        string `json:"hostIp,omitempty" yaml:"hostIp,omitempty"`
	HostPort      int    `json:"hostPort,omitempty" yaml:"hostPort,omitempty"`
	ContainerPort int    `json:"containerPort,omitempty" yaml:"containerPort,omitempty"`
	Protocol      string `json:"protocol" yaml:"protocol"`
}

// Directives are the dependency-relevant keys of a quadlet unit file.
type Directives struct {
	SourceType       string            `json:"sourceType" yaml:"sourceType"`
	SourceFile       string            `json:"sourceFile,omitempty" yaml:"sourceFile,omitempty"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	Requires         []string          `json:"requires" yaml:"requires"`
	After            []string          `json:"after" yaml:"after"`
	Wants            []string          `json:"wants" yaml:"wants"`
	BindsTo          []string          `json:"bindsTo" yaml:"bindsTo"`
	Conflicts        []string          `json:"conflicts" yaml:"conflicts"`
	ContainerName    string            `json:"containerName,omitempty" yaml:"containerName,omitempty"`
	Image            string            `json:"image,omitempty" yaml:"image,omitempty"`
	Pod              string            `json:"pod,omitempty" yaml:"pod,omitempty"`
	Environment      map[string]string `json:"environment" yaml:"environment"`
	EnvironmentFiles []string          `json:"environmentFiles" yaml:"environmentFiles"`
	Volumes          []string          `json:"volumes" yaml:"volumes"`
	PodName          string            `json:"podName,omitempty" yaml:"podName,omitempty"`
	PublishPorts     []PublishPort     `json:"publishPorts" yaml:"publishPorts"`
	KubeYaml         string            `json:"kubeYaml,omitempty" yaml:"kubeYaml,omitempty"`
	AutoUpdate       string            `json:"autoUpdate,omitempty" yaml:"autoUpdate,omitempty"`
	WantedBy         []string          `json:"wantedBy" yaml:"wantedBy"`
	RequiredBy       []string          `json:"requiredBy" yaml:"requiredBy"`
}

// OSInfo is static host information.
type OSInfo struct {
	Hostname string  `json:"hostname" yaml:"hostname"`
	Platform string  `json:"platform" yaml:"platform"`
	Release  string  `json:"release" yaml:"release"`
	Arch     string  `json:"arch" yaml:"arch"`
	Uptime   float64 `json:"uptime" yaml:"uptime"`
}

// Address is one interface address.
type Address struct {
	Address  string `json:"address" yaml:"address"`
	Family   string `json:"family" yaml:"family"`
	Internal bool   `json:"internal" yaml:"internal"`
}

// Disk is one mounted physical filesystem.
type Disk struct {
	Device     string  `json:"device" yaml:"device"`
	Mount      string  `json:"mount" yaml:"mount"`
	FSType     string  `json:"fstype" yaml:"fstype"`
	Total      uint64  `json:"total" yaml:"total"`
	Used       uint64  `json:"used" yaml:"used"`
	UsePercent float64 `json:"usePercent" yaml:"usePercent"`
}

// HostResources is a resource sample.
type HostResources struct {
	CPUUsage    float64              `json:"cpuUsage" yaml:"cpuUsage"`
	MemoryUsage uint64               `json:"memoryUsage" yaml:"memoryUsage"`
	TotalMemory uint64               `json:"totalMemory" yaml:"totalMemory"`
	DiskUsage   float64              `json:"diskUsage" yaml:"diskUsage"`
	OS          *OSInfo              `json:"os" yaml:"os"`
	Network     map[string][]Address `json:"network" yaml:"network"`
	Disks       []Disk               `json:"disks" yaml:"disks"`
}

// ProxyRoute is one reverse-proxy virtual host.
type ProxyRoute struct {
	Host          string `json:"host" yaml:"host"`
	TargetService string `json:"targetService" yaml:"targetService"`
	TargetPort    int    `json:"targetPort" yaml:"targetPort"`
	SSL           bool   `json:"ssl" yaml:"ssl"`
}

// State is the aggregate of all domains.
type State struct {
	Containers []Container    `json:"containers" yaml:"containers"`
	Services   []Service      `json:"services" yaml:"services"`
	Volumes    []Volume       `json:"volumes" yaml:"volumes"`
	Files      FileSet        `json:"files" yaml:"files"`
	Resources  *HostResources `json:"resources" yaml:"resources"`
	Proxy      []ProxyRoute   `json:"proxy" yaml:"proxy"`
	Timestamp  int64          `json:"timestamp" yaml:"timestamp"`
}
