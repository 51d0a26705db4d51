// Package services collects the systemd user services the agent manages.
//
// Only services generated from quadlet files (.kube, .container, .pod under
// the user and system quadlet directories) are reported, plus reverse-proxy
// and servicebay units regardless of origin.
//
// Two unit listing strategies exist. On a local target the collector talks
// to the user manager over D-Bus; when the bus is unreachable, or the target
// is remote, it runs
//
//	systemctl --user list-units --type=service --all --output=json
//
// through the executor. The strategy is picked on the first Collect and kept
// for the life of the collector.
package services
