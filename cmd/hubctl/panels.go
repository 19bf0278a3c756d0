package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/projecthub/internal/http"
	"github.com/fyrsmithlabs/projecthub/internal/state"
)

var (
	layoutTab    string
	layoutSplit  bool
	layoutRatio  float64
	historyLimit int
	runStatus    string
	runRunner    string
	runCounts    [3]int
	promptCat    string
	promptGlobal bool
)

func init() {
	todoCmd.AddCommand(
		panelCmd("add <text>", "Add a todo", cobra.MinimumNArgs(1), runTodoAdd),
		panelCmd("done <id>", "Toggle a todo's completed flag", cobra.ExactArgs(1), runTodoDone),
		panelCmd("rm <id>", "Remove a todo", cobra.ExactArgs(1), runTodoRemove),
	)

	notesCmd.AddCommand(panelCmd("set <text>", "Replace the notes", cobra.MinimumNArgs(1), runNotesSet))

	termCmd.AddCommand(
		panelCmd("open", "Open a terminal", cobra.NoArgs, runTermOpen),
		panelCmd("select <id>", "Make a terminal active", cobra.ExactArgs(1), runTermSelect),
		panelCmd("close <id>", "Close a terminal", cobra.ExactArgs(1), runTermClose),
	)

	layoutCmd.Flags().StringVar(&layoutTab, "tab", "", "Active tab")
	layoutCmd.Flags().BoolVar(&layoutSplit, "split", false, "Show the split view")
	layoutCmd.Flags().Float64Var(&layoutRatio, "ratio", 50, "Left pane share of the split view, 10 to 90")

	pomodoroCmd.AddCommand(
		panelCmd("start", "Start or resume the timer", cobra.NoArgs, runPomodoroStart),
		panelCmd("pause", "Pause the timer", cobra.NoArgs, runPomodoroPause),
	)

	filesCmd.AddCommand(
		panelCmd("expand <dir>", "Expand a directory", cobra.ExactArgs(1), runFiles("expand")),
		panelCmd("collapse <dir>", "Collapse a directory", cobra.ExactArgs(1), runFiles("collapse")),
		panelCmd("select <path>", "Select a file", cobra.ExactArgs(1), runFiles("select")),
	)

	recordCmd := panelCmd("record", "Record a test run", cobra.NoArgs, runTestsRecord)
	recordCmd.Flags().StringVar(&runRunner, "runner", "", "Test runner name")
	recordCmd.Flags().StringVar(&runStatus, "status", "passed", "Run status")
	recordCmd.Flags().IntVar(&runCounts[0], "passed", 0, "Passed tests")
	recordCmd.Flags().IntVar(&runCounts[1], "failed", 0, "Failed tests")
	recordCmd.Flags().IntVar(&runCounts[2], "skipped", 0, "Skipped tests")
	testsCmd.AddCommand(
		panelCmd("discover", "Scan the active project for tests", cobra.NoArgs, runTestsDiscover),
		recordCmd,
	)

	toolCmd.AddCommand(panelCmd("set <name> [command]", "Override a tool command; omit the command to reset it", cobra.RangeArgs(1, 2), runToolSet))

	logCmd := panelCmd("log", "Show recent commits", cobra.NoArgs, runGitLog)
	logCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum commits to show")
	gitCmd.AddCommand(
		logCmd,
		panelCmd("diff <path>", "Show the working-tree diff of a file", cobra.ExactArgs(1), runGitDiff),
	)

	browserCmd.AddCommand(
		panelCmd("open <url> [title]", "Open a tab", cobra.RangeArgs(1, 2), runBrowserOpen),
		panelCmd("select <id>", "Make a tab active", cobra.ExactArgs(1), runBrowserSelect),
		panelCmd("close <id>", "Close a tab", cobra.ExactArgs(1), runBrowserClose),
		panelCmd("bookmark <name> <url>", "Bookmark a URL", cobra.ExactArgs(2), runBrowserBookmark),
		panelCmd("unbookmark <id>", "Remove a bookmark", cobra.ExactArgs(1), runBrowserUnbookmark),
	)

	promptAddCmd := panelCmd("add <title> <content>", "Add a prompt", cobra.ExactArgs(2), runPromptAdd)
	promptAddCmd.Flags().StringVar(&promptCat, "category", "", "Prompt category")
	promptAddCmd.Flags().BoolVar(&promptGlobal, "global", false, "Share the prompt across projects")
	promptCmd.AddCommand(
		panelCmd("ls", "List prompts", cobra.NoArgs, runPromptList),
		promptAddCmd,
		panelCmd("use <id>", "Record a use of a prompt and print it", cobra.ExactArgs(1), runPromptUse),
		panelCmd("pin <id>", "Pin or unpin a prompt", cobra.ExactArgs(1), runPromptPin),
		panelCmd("rm <id>", "Remove a prompt", cobra.ExactArgs(1), runPromptRemove),
	)

	for _, c := range []*cobra.Command{todoCmd, notesCmd, termCmd, layoutCmd, pomodoroCmd, filesCmd, testsCmd, toolCmd, gitCmd, browserCmd, promptCmd} {
		rootCmd.AddCommand(c)
	}
}

func panelCmd(use, short string, args cobra.PositionalArgs, run func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{Use: use, Short: short, Args: args, RunE: run}
}

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Edit the active project's todos",
	Long: `Edit the todo list of the active project.

Examples:
  hubctl todo add write the release notes
  hubctl todo done 3c1d...`,
}

var notesCmd = &cobra.Command{Use: "notes", Short: "Edit the active project's notes"}

var termCmd = &cobra.Command{Use: "term", Short: "Manage the active project's terminals"}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Change the active project's layout",
	Long: `Change the active tab and split view. The split is only changed when
--split or --ratio is given.

Examples:
  hubctl layout --tab git
  hubctl layout --split --ratio 30`,
	Args: cobra.NoArgs,
	RunE: runLayout,
}

var pomodoroCmd = &cobra.Command{Use: "pomodoro", Short: "Control the active project's pomodoro timer"}

var filesCmd = &cobra.Command{Use: "files", Short: "Drive the active project's file browser"}

var testsCmd = &cobra.Command{Use: "tests", Short: "Discover tests and record runs"}

var toolCmd = &cobra.Command{Use: "tool", Short: "Override the active project's tool commands"}

var gitCmd = &cobra.Command{Use: "git", Short: "Inspect the active project's git history"}

var browserCmd = &cobra.Command{Use: "browser", Short: "Manage the active project's browser tabs and bookmarks"}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage the prompt library",
	Long: `Manage project prompts and the global prompt library.

Examples:
  hubctl prompt add review "Review this diff for bugs" --global
  hubctl prompt use 9a0b...`,
}

// report prints v as JSON when --json is set, otherwise the text line.
func report(cmd *cobra.Command, v any, format string, a ...any) error {
	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, v)
	}
	fmt.Fprintf(out, format+"\n", a...)
	return nil
}

func runTodoAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	item, err := newClient().AddTodo(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return report(cmd, item, "Added todo %s", item.ID)
}

func runTodoDone(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	item, err := newClient().ToggleTodo(ctx, args[0])
	if err != nil {
		return err
	}
	if item.Completed {
		return report(cmd, item, "Completed %s", item.Text)
	}
	return report(cmd, item, "Reopened %s", item.Text)
}

func runTodoRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().RemoveTodo(ctx, args[0]); err != nil {
		return err
	}
	return report(cmd, map[string]string{"removed": args[0]}, "Removed todo %s", args[0])
}

func runNotesSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().SetNotes(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	return report(cmd, map[string]bool{"saved": true}, "Notes saved")
}

func runTermOpen(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	term, err := newClient().OpenTerminal(ctx)
	if err != nil {
		return err
	}
	return report(cmd, term, "Opened %s (%s)", term.Name, term.ID)
}

func runTermSelect(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	snap, err := newClient().SelectTerminal(ctx, args[0])
	if err != nil {
		return err
	}
	return report(cmd, snap, "Active terminal %s", args[0])
}

func runTermClose(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().CloseTerminal(ctx, args[0]); err != nil {
		return err
	}
	return report(cmd, map[string]string{"closed": args[0]}, "Closed terminal %s", args[0])
}

func runLayout(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	req := httpapi.LayoutRequest{ActiveTab: layoutTab}
	if cmd.Flags().Changed("split") || cmd.Flags().Changed("ratio") {
		req.SplitView = layoutSplit
		ratio := layoutRatio
		req.SplitRatio = &ratio
	}
	snap, err := newClient().SetLayout(ctx, req)
	if err != nil {
		return err
	}
	return report(cmd, snap, "Tab %s, split %t (%.0f%%)", snap.ActiveTab, snap.SplitView, snap.SplitRatio)
}

func runPomodoroStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	snap, err := newClient().StartPomodoro(ctx)
	if err != nil {
		return err
	}
	return report(cmd, snap, "Pomodoro %s running, %s left", snap.Phase, snap.Remaining.Round(time.Second))
}

func runPomodoroPause(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	snap, err := newClient().PausePomodoro(ctx)
	if err != nil {
		return err
	}
	return report(cmd, snap, "Pomodoro %s paused, %s left", snap.Phase, snap.Remaining.Round(time.Second))
}

func runFiles(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		c := newClient()
		call := c.ExpandDir
		switch action {
		case "collapse":
			call = c.CollapseDir
		case "select":
			call = c.SelectFile
		}
		snap, err := call(ctx, args[0])
		if err != nil {
			return err
		}
		return report(cmd, snap, "%s %s", strings.ToUpper(action[:1])+action[1:], args[0])
	}
}

func runTestsDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	d, err := newClient().DiscoverTests(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, d)
	}
	fmt.Fprintf(out, "%d tests (%d unit, %d integration, %d e2e)\n", d.Total, d.Unit, d.Integration, d.E2E)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, f := range d.Files {
		fmt.Fprintf(w, "%s\t%s\t%d\n", f.Path, f.Kind, f.Tests)
	}
	return w.Flush()
}

func runTestsRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	run := state.TestRun{
		Runner:  runRunner,
		Status:  runStatus,
		Passed:  runCounts[0],
		Failed:  runCounts[1],
		Skipped: runCounts[2],
		Total:   runCounts[0] + runCounts[1] + runCounts[2],
	}
	snap, err := newClient().RecordTestRun(ctx, run)
	if err != nil {
		return err
	}
	return report(cmd, snap, "Recorded %s run, %d runs in history", run.Status, len(snap.History))
}

func runToolSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	command := ""
	if len(args) == 2 {
		command = args[1]
	}
	cmds, err := newClient().SetTool(ctx, args[0], command)
	if err != nil {
		return err
	}
	return report(cmd, cmds, "%s = %s", args[0], cmds[args[0]])
}

func runGitLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	commits, err := newClient().GitHistory(ctx, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, commits)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, c := range commits {
		fmt.Fprintf(w, "%s\t%s\t%s\t+%d -%d\t%s\n", c.ShortHash, c.When.Local().Format(time.DateOnly), c.Author, c.Insertions, c.Deletions, c.Subject)
	}
	return w.Flush()
}

func runGitDiff(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	d, err := newClient().GitDiff(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, d)
	}
	_, err = io.WriteString(out, d.Diff)
	return err
}

func runBrowserOpen(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	title := ""
	if len(args) == 2 {
		title = args[1]
	}
	tab, err := newClient().OpenTab(ctx, args[0], title)
	if err != nil {
		return err
	}
	return report(cmd, tab, "Opened %s (%s)", tab.URL, tab.ID)
}

func runBrowserSelect(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	b, err := newClient().SelectTab(ctx, args[0])
	if err != nil {
		return err
	}
	return report(cmd, b, "Active tab %s", b.ActiveTabID)
}

func runBrowserClose(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().CloseTab(ctx, args[0]); err != nil {
		return err
	}
	return report(cmd, map[string]string{"closed": args[0]}, "Closed tab %s", args[0])
}

func runBrowserBookmark(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	bm, err := newClient().AddBookmark(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return report(cmd, bm, "Bookmarked %s (%s)", bm.URL, bm.ID)
}

func runBrowserUnbookmark(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().RemoveBookmark(ctx, args[0]); err != nil {
		return err
	}
	return report(cmd, map[string]string{"removed": args[0]}, "Removed bookmark %s", args[0])
}

func runPromptList(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	prompts, err := newClient().Prompts(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, prompts)
	}
	if len(prompts) == 0 {
		fmt.Fprintln(out, "No prompts. Add one with: hubctl prompt add <title> <content>")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tTITLE\tCATEGORY\tUSES\tSCOPE")
	for _, p := range prompts {
		pin, scope := "", "project"
		if p.Pinned {
			pin = "*"
		}
		if p.IsGlobal {
			scope = "global"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", pin, p.ID, p.Title, p.Category, p.UsageCount, scope)
	}
	return w.Flush()
}

func runPromptAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	p, err := newClient().AddPrompt(ctx, httpapi.PromptRequest{
		Title:    args[0],
		Content:  args[1],
		Category: promptCat,
		Global:   promptGlobal,
	})
	if err != nil {
		return err
	}
	return report(cmd, p, "Added prompt %s", p.ID)
}

func runPromptUse(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	p, err := newClient().UsePrompt(ctx, args[0])
	if err != nil {
		return err
	}
	return report(cmd, p, "%s", p.Content)
}

func runPromptPin(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	p, err := newClient().TogglePromptPin(ctx, args[0])
	if err != nil {
		return err
	}
	if p.Pinned {
		return report(cmd, p, "Pinned %s", p.Title)
	}
	return report(cmd, p, "Unpinned %s", p.Title)
}

func runPromptRemove(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().RemovePrompt(ctx, args[0]); err != nil {
		return err
	}
	return report(cmd, map[string]string{"removed": args[0]}, "Removed prompt %s", args[0])
}
