package executor

import (
	"context"
	"maps"
)

type labelsKey struct{}

// WithLabels returns a context carrying metadata about the command about to
// run (run ID, step name). Backends that can attach metadata to what they
// start, such as the Docker executor, read it with LabelsFrom.
func WithLabels(ctx context.Context, labels map[string]string) context.Context {
	merged := LabelsFrom(ctx)
	maps.Copy(merged, labels)
	return context.WithValue(ctx, labelsKey{}, merged)
}

// LabelsFrom returns a copy of the labels stored in ctx.
func LabelsFrom(ctx context.Context) map[string]string {
	out := map[string]string{}
	if l, ok := ctx.Value(labelsKey{}).(map[string]string); ok {
		maps.Copy(out, l)
	}
	return out
}
