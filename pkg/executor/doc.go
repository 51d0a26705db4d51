// Package executor runs external commands on the agent's execution target.
//
// Two implementations share the Executor interface: Local spawns processes
// on this host, Remote multiplexes sessions over one SSH connection dialed
// at construction. Every collector and monitor receives the same Executor,
// so a refresh never mixes local and remote views.
//
// A command that runs and exits non-zero, or whose binary is missing, is a
// Result, not an error:
//
//	res, err := exec.Execute(ctx, []string{"podman", "ps", "-a", "--format", "json"})
//	if err != nil {
//	    // TIMEOUT, SERVICE_UNAVAILABLE or INTERNAL: the caller's domain is stale
//	    return nil, err
//	}
//	if !res.Success() {
//	    // command ran and failed: degrade to an empty snapshot
//	}
//
// A Remote executor whose session cannot be established is degraded for the
// rest of the process lifetime: every call fails fast with
// errors.ErrCodeUnavailable.
package executor
