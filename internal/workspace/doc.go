// Package workspace switches the active project.
//
// Components register a handler in a Registry with a name and a priority.
// A handler implements any subset of four lifecycle capabilities:
//
//	BeforeSwitcher  quiesce (stop pollers, pause timers)
//	Saver           persist the outgoing project's slice of state
//	Loader          restore from the freshly fetched ProjectState
//	AfterSwitcher   resume (start pollers, focus)
//
// The Coordinator runs the phases in that order over a priority-sorted
// snapshot of the registry. Commit of the new active project happens after
// Save and before the state fetch, so savers always observe the outgoing
// project and loaders the incoming one.
//
// Hook errors and panics never abort a switch. They are collected as Faults
// on the Result, logged, traced and counted. The only failures a caller sees
// are ErrSwitchInProgress, ErrUnknownProject and ErrStateFetch.
package workspace
