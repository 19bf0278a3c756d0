// Package panels provides the per-project UI panels that take part in a
// project switch. Each panel is a workspace handler owning one slice of
// state.ProjectState:
//
//	terminal   10  sessions and the active terminal
//	git        20  branch and changed files, polled while active; history and diffs
//	tests      30  test history and coverage, watched while active; discovery
//	notes      40  markdown notes
//	todos      50  todo list
//	pomodoro   60  focus timer
//	files      70  file browser tree
//	tools      80  .projecthub.toml tool commands and overrides
//	browser    85  preview tabs and bookmarks
//	prompts    90  project prompts; global prompts are shared
//	layout    100  active tab and split view
//
// Panels persist the project they were loaded for in Save and restore the
// incoming one in Load. Background work (the git poller, the coverage watcher) only runs
// between AfterSwitch and the next BeforeSwitch.
package panels
