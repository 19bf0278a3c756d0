package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
)

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(activeCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(stateCmd)
}

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"ls"},
	Short:   "List registered projects",
	Long: `List every registered project. The active project is marked with *.

Examples:
  hubctl projects
  hubctl projects --json`,
	Args: cobra.NoArgs,
	RunE: runProjects,
}

var addCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Register a directory as a project",
	Long: `Register a directory as a project. Relative paths are resolved against
the current directory before they are sent to the daemon.

Examples:
  hubctl add api ~/src/api
  hubctl add web .`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the active project",
	Args:  cobra.NoArgs,
	RunE:  runActive,
}

var switchCmd = &cobra.Command{
	Use:   "switch <project-id>",
	Short: "Switch the active project",
	Long: `Switch the active project. Switching to the already active project is a
no-op. Handler failures do not fail the switch; they are listed after it.

Examples:
  hubctl switch 5f1c2d9e-0c55-4c1e-9a4f-3b7d2a8e6f10`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-run every handler for the active project",
	Long: `Reload re-runs every phase for the active project with freshly fetched
state. Use it to recover after a switch reported missing state.`,
	Args: cobra.NoArgs,
	RunE: runReload,
}

var stateCmd = &cobra.Command{
	Use:   "state <project-id>",
	Short: "Print the persisted state of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

func runProjects(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	resp, err := newClient().Projects(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, resp)
	}
	if len(resp.Projects) == 0 {
		fmt.Fprintln(out, "No projects registered. Add one with: hubctl add <name> <path>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tPATH\tLAST OPENED")
	for _, p := range resp.Projects {
		marker := ""
		if p.ID == resp.ActiveProject {
			marker = "*"
		}
		lastOpened := "-"
		if !p.LastOpened.IsZero() {
			lastOpened = p.LastOpened.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, p.ID, p.Name, p.Path, lastOpened)
	}
	return w.Flush()
}

func runAdd(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[1], err)
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	p, err := newClient().CreateProject(ctx, args[0], path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, p)
	}
	fmt.Fprintf(out, "Added project %s (%s)\n", p.Name, p.ID)
	return nil
}

func runActive(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	resp, err := newClient().Active(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, resp)
	}
	if resp.Project == nil {
		fmt.Fprintln(out, "No active project")
		return nil
	}
	fmt.Fprintf(out, "%s (%s)\n%s\n", resp.Project.Name, resp.Project.ID, resp.Project.Path)
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	res, err := newClient().Switch(ctx, args[0])
	if err != nil {
		return err
	}
	return printSwitch(cmd.OutOrStdout(), res)
}

func runReload(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	res, err := newClient().Reload(ctx)
	if err != nil {
		return err
	}
	return printSwitch(cmd.OutOrStdout(), res)
}

func runState(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	st, err := newClient().ProjectState(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), st)
}

func printSwitch(out io.Writer, res httpapi.SwitchResponse) error {
	if outputJSON {
		return printJSON(out, res)
	}

	switch {
	case res.Noop:
		fmt.Fprintf(out, "Already on %s\n", res.To)
		return nil
	case res.Reload:
		fmt.Fprintf(out, "Reloaded %s in %s\n", res.To, res.Duration.Round(time.Microsecond))
	case res.From == "":
		fmt.Fprintf(out, "Switched to %s in %s\n", res.To, res.Duration.Round(time.Microsecond))
	default:
		fmt.Fprintf(out, "Switched %s -> %s in %s\n", res.From, res.To, res.Duration.Round(time.Microsecond))
	}

	if res.StateMissing {
		fmt.Fprintln(out, "warning: project state could not be loaded; run hubctl reload")
	}
	for _, f := range res.Faults {
		kind := "failed"
		if f.Panicked {
			kind = "panicked"
		}
		fmt.Fprintf(out, "warning: %s %s in %s: %s\n", f.Handler, kind, f.Phase, f.Error)
	}
	return nil
}
