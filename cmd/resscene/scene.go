package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/resscene"
	"github.com/aretw0/resscene/internal/presentation/graph"
	"github.com/aretw0/resscene/internal/presentation/tui"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/service"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Manage stored scenes",
	Long:  `List, inspect, create, activate, rename and remove scenes in the configured store.`,
}

var sceneLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored scenes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(eng *resscene.Engine) error {
			scenes, err := eng.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(scenes) == 0 {
				fmt.Fprintln(out, "No scenes found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tENTITIES\tUPDATED")
			for _, sc := range scenes {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", sc.EntityID(), len(sc.Snapshots), sc.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		})
	},
}

var sceneInspectCmd = &cobra.Command{
	Use:   "inspect <entity-id>",
	Short: "Inspect the snapshots of a scene",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withEngine(cmd, func(eng *resscene.Engine) error {
			scene, err := eng.Service.Get(cmd.Context(), sceneEntityID(args[0]))
			if err != nil {
				return err
			}
			return printScene(cmd.OutOrStdout(), scene, format)
		})
	},
}

var sceneGraphCmd = &cobra.Command{
	Use:   "graph [entity-id]...",
	Short: "Print scenes as a Mermaid flowchart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(eng *resscene.Engine) error {
			var scenes []*domain.Scene
			if len(args) == 0 {
				all, err := eng.Service.List(cmd.Context())
				if err != nil {
					return err
				}
				scenes = all
			}
			for _, id := range args {
				sc, err := eng.Service.Get(cmd.Context(), sceneEntityID(id))
				if err != nil {
					return err
				}
				scenes = append(scenes, sc)
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(scenes, nil))
			return nil
		})
	},
}

var sceneCreateCmd = &cobra.Command{
	Use:   "create <scene-id> <entity-id>...",
	Short: "Capture entities into a scene",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := service.CreateRequest{SceneID: args[0], SnapshotEntities: args[1:]}
		req.SnapshotAreas, _ = cmd.Flags().GetStringSlice("area")
		req.SnapshotLabels, _ = cmd.Flags().GetStringSlice("label")
		req.SnapshotFilter, _ = cmd.Flags().GetString("filter")
		if cmd.Flags().Changed("restore-light-attributes") {
			v, _ := cmd.Flags().GetBool("restore-light-attributes")
			req.RestoreLightAttributes = &v
		}
		if cmd.Flags().Changed("timeout") {
			d, _ := cmd.Flags().GetDuration("timeout")
			secs := d.Seconds()
			req.ActionTimeout = &secs
		}

		return withEngine(cmd, func(eng *resscene.Engine) error {
			res, err := eng.Service.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Saved %s with %d entities\n", color.GreenString("✓"), res.Scene.EntityID(), len(res.Scene.Snapshots))
			if res.Warning != nil {
				for _, f := range res.Warning.Failures {
					fmt.Fprintf(out, "%s %s: %s\n", color.YellowString("!"), f.EntityID, f.Reason)
				}
			}
			for _, id := range res.Fallbacks {
				fmt.Fprintf(out, "%s %s kept its previous snapshot\n", color.YellowString("!"), id)
			}
			return nil
		})
	},
}

var sceneActivateCmd = &cobra.Command{
	Use:   "activate <entity-id>",
	Short: "Restore a scene",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withEngine(cmd, func(eng *resscene.Engine) error {
			report, err := eng.Service.Activate(cmd.Context(), sceneEntityID(args[0]))
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%d entities failed to restore", len(report.Failures()))
			}
			return nil
		})
	},
}

var sceneRmCmd = &cobra.Command{
	Use:   "rm <entity-id>...",
	Short: "Remove one or more scenes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(eng *resscene.Engine) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, id := range args {
				entityID := sceneEntityID(id)
				if err := eng.Service.Delete(cmd.Context(), service.DeleteRequest{EntityID: entityID}); err != nil {
					fmt.Fprintf(out, "%s Error removing '%s': %v\n", color.RedString("✗"), entityID, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s Removed scene '%s'\n", color.GreenString("✓"), entityID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenes could not be removed", failed, len(args))
			}
			return nil
		})
	},
}

var sceneMvCmd = &cobra.Command{
	Use:   "mv <entity-id> <new-scene-id>",
	Short: "Rename a scene",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(eng *resscene.Engine) error {
			req := service.RenameRequest{EntityID: sceneEntityID(args[0]), NewSceneID: args[1]}
			scene, err := eng.Service.Rename(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %s\n", color.GreenString("✓"), req.EntityID, scene.EntityID())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sceneCmd)
	sceneCmd.AddCommand(sceneLsCmd, sceneInspectCmd, sceneGraphCmd, sceneCreateCmd, sceneActivateCmd, sceneRmCmd, sceneMvCmd)

	sceneInspectCmd.Flags().StringP("format", "o", "auto", "Output format: auto, markdown, json or yaml")
	sceneActivateCmd.Flags().StringP("format", "o", "auto", "Output format: auto, markdown, json or yaml")

	sceneCreateCmd.Flags().StringSlice("area", nil, "Also capture the entities of an area")
	sceneCreateCmd.Flags().StringSlice("label", nil, "Also capture the entities carrying a label")
	sceneCreateCmd.Flags().String("filter", "", `Also capture entities matching an expression, e.g. 'domain == "light"'`)
	sceneCreateCmd.Flags().Bool("restore-light-attributes", false, "Restore attributes of lights saved as off")
	sceneCreateCmd.Flags().Duration("timeout", 0, "How long to wait for each entity during activation")
}

// withEngine builds an engine from the configuration, loads the stored
// scenes and closes the engine when fn returns.
func withEngine(cmd *cobra.Command, fn func(*resscene.Engine) error) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, err := buildEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.Start(cmd.Context()); err != nil {
		return err
	}
	return fn(eng)
}

// sceneEntityID accepts either scene.<id> or a bare scene id.
func sceneEntityID(arg string) string {
	if strings.HasPrefix(arg, "scene.") {
		return arg
	}
	return domain.SceneEntityID(arg)
}

func printScene(w io.Writer, scene *domain.Scene, format string) error {
	return writeOutput(w, scene, tui.SceneMarkdown(scene), format)
}

func printReport(w io.Writer, report *domain.ActivationReport, format string) error {
	return writeOutput(w, report, tui.ReportMarkdown(report), format)
}

func writeOutput(w io.Writer, v any, markdown, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Round-trip through JSON so yaml uses the same field names.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return err
		}
		return yaml.NewEncoder(w).Encode(doc)
	case "markdown":
		_, err := io.WriteString(w, markdown)
		return err
	case "auto", "":
		fd := int(os.Stdout.Fd())
		if !term.IsTerminal(fd) {
			_, err := io.WriteString(w, markdown)
			return err
		}
		width, _, err := term.GetSize(fd)
		if err != nil {
			width = 80
		}
		render, err := tui.NewRenderer(!color.NoColor, width)
		if err != nil {
			return err
		}
		out, err := render(markdown)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
