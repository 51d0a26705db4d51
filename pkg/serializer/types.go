// Package serializer writes agent state to an io.Writer as JSON, YAML or a
// human-readable table.
//
// Usage:
//
//	writer := serializer.NewFileWriterOrStdout(serializer.FormatYAML, path)
//	defer writer.Close()
//	if err := writer.Serialize(ctx, state); err != nil {
//		return err
//	}
//
// The table format renders a snapshot.State as one section per domain and
// any other value as flattened FIELD/VALUE rows.
package serializer

import "context"

// Serializer writes one value.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}

// Closer is implemented by serializers holding a file.
type Closer interface {
	Close() error
}
