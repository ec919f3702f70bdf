package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/resscene/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of scenes and the entities they hold.
// It applies semantic styling:
// - Scene: ((Circle))
// - Light: ([Stadium])
// - Cover, lock: [[Subroutine]]
// - Default: [Rectangle]
// If report is provided, entities are styled by their outcome in that run.
func GenerateMermaid(scenes []*domain.Scene, report *domain.ActivationReport) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, scene := range scenes {
		sceneID := sanitizeMermaidID(scene.EntityID())
		sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", sceneID, scene.EntityID()))

		for _, snap := range scene.Snapshots {
			entityID := sanitizeMermaidID(snap.EntityID())

			opener, closer := "[", "]"
			switch snap.Domain() {
			case "light":
				opener, closer = "([", "])"
			case "cover", "lock":
				opener, closer = "[[", "]]"
			}

			sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", entityID, opener, snap.EntityID(), escape(snap.State()), closer))
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sceneID, entityID))
		}
	}

	if report != nil {
		sb.WriteString("\n    %% Activation Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef applied fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eceff1,stroke:#607d8b,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:4px,color:#000;\n")

		for _, o := range report.Outcomes {
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", sanitizeMermaidID(o.EntityID), o.Status))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
