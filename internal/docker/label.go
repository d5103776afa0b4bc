package docker

import (
	"maps"
	"slices"
	"strings"
)

// Label keys attached to every container the executor starts. All keys
// share the "clusterone." prefix so they do not collide with labels set by
// other tools.
const (
	// LabelPrefix is the common prefix for all clusterone-push labels.
	LabelPrefix = "clusterone."

	// LabelManagedBy marks containers started by this CLI.
	// Key: "clusterone.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelWorkspace stores the host directory commands default to.
	LabelWorkspace = LabelPrefix + "workspace"

	// LabelStep names the workflow step a command belongs to. It is read
	// from the context of each Run and logged with the exec; it is never
	// set on the container, which outlives every single step.
	LabelStep = LabelPrefix + "step"
)

// ManagedByValue is the constant value for LabelManagedBy.
const ManagedByValue = "clusterone-push"

// BuildLabels returns the container labels for one run: the managed-by
// marker, the default workspace (if any) and every caller-supplied label
// that lives under LabelPrefix. Foreign keys are dropped so callers cannot
// overwrite labels owned by other tools.
func BuildLabels(meta map[string]string, workspace string) map[string]string {
	labels := FilterLabels(meta)
	labels[LabelManagedBy] = ManagedByValue
	if workspace != "" {
		labels[LabelWorkspace] = workspace
	}
	return labels
}

// FilterLabels returns only the labels under LabelPrefix.
func FilterLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+2)
	for k, v := range labels {
		if strings.HasPrefix(k, LabelPrefix) {
			out[k] = v
		}
	}
	return out
}

// FormatLabels renders labels as sorted key=value pairs for logging.
func FormatLabels(labels map[string]string) string {
	keys := slices.Sorted(maps.Keys(labels))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}
