// Package errors provides structured error types used across the agent so
// callers can tell failure modes apart without string matching.
//
// A command that exceeded its deadline and a remote session that could not
// be established are different conditions from a command that ran and exited
// non-zero, and the executor reports them with distinct codes:
//
//	res, err := exec.Execute(ctx, []string{"podman", "ps", "-a", "--format", "json"})
//	switch {
//	case errors.IsCode(err, errors.ErrCodeTimeout):
//	    // domain is stale for this cycle
//	case err != nil:
//	    // session unavailable or spawn failure
//	case !res.Success():
//	    // command ran and failed, degrade to an empty snapshot
//	}
//
// Example of wrapping with context:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodeTimeout,
//	    "command exceeded deadline",
//	    ctx.Err(),
//	    map[string]any{
//	        "command": "podman events",
//	        "timeout": timeout.String(),
//	    },
//	)
package errors
