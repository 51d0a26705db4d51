package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/NVIDIA/cns-node-agent/pkg/executor"
)

var listUnitsCommand = []string{"systemctl", "--user", "list-units", "--type=service", "--all", "--output=json"}

// systemctlLister parses systemctl's JSON unit listing.
type systemctlLister struct {
	ex executor.Executor
}

type listedUnit struct {
	Unit        string `json:"unit"`
	Load        string `json:"load"`
	Active      string `json:"active"`
	Sub         string `json:"sub"`
	Description string `json:"description"`
}

func (l *systemctlLister) list(ctx context.Context, keep func(string) bool) ([]unitStatus, error) {
	res, err := l.ex.Execute(ctx, listUnitsCommand)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		slog.Warn("systemctl list-units failed", "exitCode", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return nil, nil
	}

	var units []listedUnit
	if err := json.Unmarshal([]byte(res.Stdout), &units); err != nil {
		slog.Warn("failed to decode systemctl output", "error", err)
		return nil, nil
	}

	out := make([]unitStatus, 0, len(units))
	for _, u := range units {
		if !keep(u.Unit) {
			continue
		}
		out = append(out, unitStatus{
			Name:        u.Unit,
			Description: u.Description,
			LoadState:   u.Load,
			ActiveState: u.Active,
			SubState:    u.Sub,
		})
	}
	return out, nil
}
