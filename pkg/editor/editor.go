// Package editor is a small stand-in for a host application whose state may only
// be touched from its main loop. Its handlers are the bridge's demo command set.
package editor

import (
	"fmt"
	"sort"
	"strings"
)

// Console entry modes.
const (
	ModeLog     = 0
	ModeWarning = 1
	ModeError   = 2
)

// LogEntry is one console line.
type LogEntry struct {
	Message string `json:"message"`
	Mode    int    `json:"mode"`
}

// MenuAction runs when a menu item is executed.
type MenuAction func(ed *Editor) error

// Editor holds host state. It is not safe for concurrent use; every method must be
// called from the host loop goroutine.
type Editor struct {
	playing   bool
	paused    bool
	compiling bool
	tags      []string
	console   []LogEntry
	menu      map[string]MenuAction
	saves     int
}

// New creates an editor with the default menu.
func New() *Editor {
	ed := &Editor{
		tags: []string{"Untagged", "MainCamera", "Player"},
		menu: make(map[string]MenuAction),
	}
	ed.AddMenuItem("File/Save Project", func(ed *Editor) error {
		ed.saves++
		ed.Log("Project saved.", ModeLog)
		return nil
	})
	ed.AddMenuItem("Edit/Play", func(ed *Editor) error {
		if ed.playing {
			ed.Stop()
		} else {
			ed.Play()
		}
		return nil
	})
	ed.AddMenuItem("Assets/Refresh", func(ed *Editor) error {
		ed.Log("Asset database refreshed.", ModeLog)
		return nil
	})
	return ed
}

// Play enters play mode.
func (ed *Editor) Play() {
	ed.playing = true
	ed.paused = false
	ed.Log("Entered play mode.", ModeLog)
}

// Pause pauses the editor.
func (ed *Editor) Pause() {
	ed.paused = true
}

// Stop leaves play mode.
func (ed *Editor) Stop() {
	ed.playing = false
	ed.paused = false
	ed.Log("Exited play mode.", ModeLog)
}

// State is a snapshot of the play flags.
type State struct {
	IsPlaying   bool `json:"isPlaying"`
	IsPaused    bool `json:"isPaused"`
	IsCompiling bool `json:"isCompiling"`
}

// State returns the current play flags.
func (ed *Editor) State() State {
	return State{IsPlaying: ed.playing, IsPaused: ed.paused, IsCompiling: ed.compiling}
}

// AddTag adds a tag. It reports false when the tag already exists.
func (ed *Editor) AddTag(tag string) bool {
	for _, t := range ed.tags {
		if t == tag {
			return false
		}
	}
	ed.tags = append(ed.tags, tag)
	return true
}

// Tags returns the defined tags.
func (ed *Editor) Tags() []string {
	return append([]string(nil), ed.tags...)
}

// Log appends a console line.
func (ed *Editor) Log(message string, mode int) {
	ed.console = append(ed.console, LogEntry{Message: message, Mode: mode})
}

// Logs returns the console lines containing filter (all lines when filter is empty).
func (ed *Editor) Logs(filter string) []LogEntry {
	out := make([]LogEntry, 0, len(ed.console))
	for _, e := range ed.console {
		if filter != "" && !strings.Contains(e.Message, filter) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ClearConsole empties the console.
func (ed *Editor) ClearConsole() {
	ed.console = nil
}

// AddMenuItem registers a menu item, replacing any existing one at path.
func (ed *Editor) AddMenuItem(path string, action MenuAction) {
	ed.menu[path] = action
}

// MenuItems returns the registered menu paths, sorted.
func (ed *Editor) MenuItems() []string {
	out := make([]string, 0, len(ed.menu))
	for p := range ed.menu {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ExecuteMenuItem runs the action registered at path.
func (ed *Editor) ExecuteMenuItem(path string) error {
	action, ok := ed.menu[path]
	if !ok {
		return fmt.Errorf("menu item %q not found", path)
	}
	return action(ed)
}

// Saves returns how many times the project was saved.
func (ed *Editor) Saves() int {
	return ed.saves
}
