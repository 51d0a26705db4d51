package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/dbus"
)

// dbusLister queries the user's systemd manager directly.
type dbusLister struct{}

func dbusAvailable(ctx context.Context) bool {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		slog.Debug("failed to connect to systemd user bus", "error", err)
		return false
	}
	conn.Close()
	return true
}

func (dbusLister) list(ctx context.Context, keep func(string) bool) ([]unitStatus, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	units, err := conn.ListUnitsByPatternsContext(ctx, nil, []string{"*.service"})
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}

	out := make([]unitStatus, 0, len(units))
	for _, u := range units {
		if !keep(u.Name) {
			continue
		}
		out = append(out, unitStatus{
			Name:        u.Name,
			Description: u.Description,
			LoadState:   u.LoadState,
			ActiveState: u.ActiveState,
			SubState:    u.SubState,
			Path:        fragmentPath(ctx, conn, u.Name),
		})
	}
	return out, nil
}

func fragmentPath(ctx context.Context, conn *dbus.Conn, unit string) string {
	prop, err := conn.GetUnitPropertyContext(ctx, unit, "FragmentPath")
	if err != nil {
		slog.Debug("failed to get unit property", "unit", unit, "error", err)
		return ""
	}
	s, _ := prop.Value.Value().(string)
	return s
}
