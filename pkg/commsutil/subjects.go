package commsutil

import "strings"

// Default COMMS subjects.
const (
	SubjectCommands  = "bridge.commands"
	SubjectCompleted = "bridge.command.completed"
	SubjectLifecycle = "bridge.lifecycle"
)

var subjectTokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// BuildCompletedSubject builds the per-command-type completion subject
// (e.g. bridge.command.completed.manage_editor).
func BuildCompletedSubject(base, cmdType string) string {
	if base == "" {
		base = SubjectCompleted
	}
	token := subjectTokenReplacer.Replace(cmdType)
	if token == "" {
		token = "_"
	}
	return base + "." + token
}
