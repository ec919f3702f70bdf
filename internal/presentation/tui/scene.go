package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/resscene/pkg/domain"
)

// SceneMarkdown describes a scene as a markdown document: a header with its
// options and one table row per entity.
func SceneMarkdown(scene *domain.Scene) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", scene.EntityID())
	fmt.Fprintf(&sb, "- **Entities:** %d\n", len(scene.Snapshots))
	if !scene.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Updated:** %s\n", scene.UpdatedAt.Format(time.RFC3339))
	}
	if v := scene.Options.RestoreLightAttributes; v != nil {
		fmt.Fprintf(&sb, "- **Restore light attributes:** %t\n", *v)
	}
	if v := scene.Options.ActionTimeout; v != nil {
		fmt.Fprintf(&sb, "- **Action timeout:** %s\n", *v)
	}

	sb.WriteString("\n| Entity | State | Attributes |\n|---|---|---|\n")
	for _, snap := range scene.Snapshots {
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", snap.EntityID(), cell(snap.State()), attributesCell(snap.Attributes()))
	}
	return sb.String()
}

// ReportMarkdown describes an activation run.
func ReportMarkdown(report *domain.ActivationReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Activated %s\n\n", domain.SceneEntityID(report.SceneID))
	fmt.Fprintf(&sb, "- **Run:** `%s`\n- **Duration:** %s\n\n", report.RunID, report.Duration().Round(time.Millisecond))
	sb.WriteString("| Entity | Outcome | Calls | Reason |\n|---|---|---|---|\n")
	for _, o := range report.Outcomes {
		fmt.Fprintf(&sb, "| `%s` | %s | %d | %s |\n", o.EntityID, o.Status, o.Calls, cell(o.Reason))
	}
	return sb.String()
}

func attributesCell(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		v, err := json.Marshal(attrs[k])
		if err != nil {
			v = []byte("?")
		}
		parts[i] = k + "=" + string(v)
	}
	return cell(strings.Join(parts, ", "))
}

// cell escapes characters that would break a markdown table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
