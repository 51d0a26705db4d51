// Package cli implements the cns-agent command-line interface.
//
// # Commands
//
// run (default) - Stream host state:
//
//	cns-agent [global flags] [run]
//
// Performs a full refresh, publishes every domain, then keeps watching
// podman events, quadlet files and host resources. Envelopes are written
// to stdout separated by NUL bytes and commands are read from stdin.
//
// snapshot - One-shot collection:
//
//	cns-agent snapshot [--output FILE] [--format json|yaml|table]
//
// # Global Flags
//
//	--target            auto, local or remote (CNS_AGENT_TARGET)
//	--ssh-host          remote host (CNS_AGENT_SSH_HOST)
//	--ssh-port          remote port, default 22 (CNS_AGENT_SSH_PORT)
//	--ssh-user          remote user (CNS_AGENT_SSH_USER)
//	--ssh-key           private key file (CNS_AGENT_SSH_KEY)
//	--ssh-known-hosts   known_hosts file (CNS_AGENT_SSH_KNOWN_HOSTS)
//	--command-timeout   external command timeout (CNS_AGENT_COMMAND_TIMEOUT)
//	--config-dir        quadlet directory (CNS_AGENT_CONFIG_DIR)
//	--cleanup-orphans   kill orphaned agents on start (CNS_AGENT_CLEANUP_ORPHANS)
//	--metrics-address   ops listener address (CNS_AGENT_METRICS_ADDRESS)
//	--log-level         debug, info, warn, error (LOG_LEVEL)
//
// Logs are structured JSON on stderr; stdout carries only the IPC stream.
// An invalid configuration is logged and exits with status 1.
package cli
