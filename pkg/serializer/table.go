package serializer

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/NVIDIA/cns-node-agent/pkg/snapshot"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// writeState renders one section per domain.
func writeState(out io.Writer, st *snapshot.State) error {
	tw := newTable(out)

	fmt.Fprintf(tw, "CONTAINERS (%d)\n", len(st.Containers))
	fmt.Fprintln(tw, "NAME\tIMAGE\tSTATE\tPORTS")
	for _, c := range st.Containers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name(), c.Image, c.State, ports(c.Ports))
	}

	fmt.Fprintf(tw, "\nSERVICES (%d)\n", len(st.Services))
	fmt.Fprintln(tw, "NAME\tACTIVE\tSUB\tLOAD")
	for _, s := range st.Services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.ActiveState, s.SubState, s.LoadState)
	}

	fmt.Fprintf(tw, "\nVOLUMES (%d)\n", len(st.Volumes))
	fmt.Fprintln(tw, "NAME\tDRIVER\tUSED BY")
	for _, v := range st.Volumes {
		users := make([]string, 0, len(v.UsedBy))
		for _, u := range v.UsedBy {
			users = append(users, u.Name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Name, v.Driver, strings.Join(users, ","))
	}

	fmt.Fprintf(tw, "\nFILES (%d)\n", len(st.Files))
	fmt.Fprintln(tw, "PATH\tSIZE\tTYPE")
	paths := make([]string, 0, len(st.Files))
	for p := range st.Files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		f := st.Files[p]
		kind := "-"
		if f.Directives != nil {
			kind = f.Directives.SourceType
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p, len(f.Content), kind)
	}

	fmt.Fprintf(tw, "\nPROXY (%d)\n", len(st.Proxy))
	fmt.Fprintln(tw, "HOST\tTARGET\tSSL")
	for _, r := range st.Proxy {
		fmt.Fprintf(tw, "%s\t%s\t%t\n", r.Host, r.TargetService, r.SSL)
	}

	fmt.Fprintln(tw, "\nRESOURCES")
	if r := st.Resources; r != nil {
		fmt.Fprintf(tw, "cpu\t%.1f%%\n", r.CPUUsage)
		fmt.Fprintf(tw, "memory\t%s / %s\n", bytesIEC(r.MemoryUsage), bytesIEC(r.TotalMemory))
		fmt.Fprintf(tw, "disk\t%.1f%%\n", r.DiskUsage)
		if r.OS != nil {
			fmt.Fprintf(tw, "host\t%s (%s %s)\n", r.OS.Hostname, r.OS.Release, r.OS.Arch)
		}
	} else {
		fmt.Fprintln(tw, "<not sampled>")
	}

	if st.Timestamp > 0 {
		fmt.Fprintf(tw, "\nupdated\t%s\n", time.UnixMilli(st.Timestamp).UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func ports(ps []snapshot.Port) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, fmt.Sprintf("%d->%d/%s", p.HostPort, p.ContainerPort, p.Protocol))
	}
	return strings.Join(parts, ",")
}

func bytesIEC(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// writeFlat renders any value as sorted FIELD/VALUE rows.
func writeFlat(out io.Writer, v any) error {
	flat := make(map[string]any)
	flatten(flat, reflect.ValueOf(v), "")
	if len(flat) == 0 {
		_, err := fmt.Fprintln(out, "<empty>")
		return err
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	tw := newTable(out)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%v\n", k, flat[k])
	}
	return tw.Flush()
}

func flatten(out map[string]any, val reflect.Value, prefix string) {
	if !val.IsValid() {
		return
	}
	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		if val.IsNil() {
			if prefix != "" {
				out[prefix] = nil
			}
			return
		}
		val = val.Elem()
	}

	//nolint:exhaustive // remaining kinds are leaves
	switch val.Kind() {
	case reflect.Struct:
		typ := val.Type()
		for i := range val.NumField() {
			if f := typ.Field(i); f.IsExported() {
				flatten(out, val.Field(i), join(prefix, f.Name))
			}
		}
	case reflect.Map:
		for _, k := range val.MapKeys() {
			flatten(out, val.MapIndex(k), join(prefix, fmt.Sprint(k.Interface())))
		}
	case reflect.Slice, reflect.Array:
		for i := range val.Len() {
			flatten(out, val.Index(i), join(prefix, "["+strconv.Itoa(i)+"]"))
		}
	default:
		if prefix == "" {
			prefix = "value"
		}
		out[prefix] = val.Interface()
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
