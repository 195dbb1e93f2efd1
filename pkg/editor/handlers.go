package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/morezero/command-bridge/pkg/dispatcher"
	"github.com/morezero/command-bridge/pkg/protocol"
)

// Command types served by Table.
const (
	CmdNoopEcho        = "noop_echo"
	CmdManageEditor    = "manage_editor"
	CmdReadConsole     = "read_console"
	CmdExecuteMenuItem = "execute_menu_item"
)

// ManageEditorParams are the parameters of manage_editor.
type ManageEditorParams struct {
	Action  string `json:"action"`
	TagName string `json:"tagName"`
}

// ReadConsoleParams are the parameters of read_console.
type ReadConsoleParams struct {
	Action     string `json:"action"`
	FilterText string `json:"filterText"`
}

// ExecuteMenuItemParams are the parameters of execute_menu_item.
type ExecuteMenuItemParams struct {
	MenuPath string `json:"menuPath"`
}

// Table returns the dispatch table for ed.
func Table(ed *Editor) *dispatcher.Table {
	return dispatcher.NewTable(map[string]dispatcher.Handler{
		CmdNoopEcho:        dispatcher.HandlerFunc(noopEcho),
		CmdManageEditor:    dispatcher.Typed(ed.handleManageEditor),
		CmdReadConsole:     dispatcher.Typed(ed.handleReadConsole),
		CmdExecuteMenuItem: dispatcher.Typed(ed.handleExecuteMenuItem),
	})
}

func noopEcho(_ context.Context, params json.RawMessage) (protocol.Envelope, error) {
	return protocol.Success("Echo.", params), nil
}

func (ed *Editor) handleManageEditor(_ context.Context, p ManageEditorParams) (protocol.Envelope, error) {
	action := strings.ToLower(p.Action)
	switch action {
	case "":
		return protocol.Error("Action is required for manage_editor.", nil), nil
	case "play":
		ed.Play()
		return protocol.Success("Editor entering play mode.", nil), nil
	case "pause":
		ed.Pause()
		return protocol.Success("Editor paused.", nil), nil
	case "stop":
		ed.Stop()
		return protocol.Success("Editor exiting play mode.", nil), nil
	case "get_state":
		return protocol.Success("Editor state retrieved.", ed.State()), nil
	case "add_tag":
		if p.TagName == "" {
			return protocol.Error("Tag name is required to add a tag.", nil), nil
		}
		if !ed.AddTag(p.TagName) {
			return protocol.Error(fmt.Sprintf("Tag '%s' already exists.", p.TagName), nil), nil
		}
		return protocol.Success(fmt.Sprintf("Tag '%s' added.", p.TagName), nil), nil
	default:
		return protocol.Error(fmt.Sprintf("Unknown action for manage_editor: '%s'", action), nil), nil
	}
}

func (ed *Editor) handleReadConsole(_ context.Context, p ReadConsoleParams) (protocol.Envelope, error) {
	switch strings.ToLower(p.Action) {
	case "":
		return protocol.Error("Action is required.", nil), nil
	case "get":
		return protocol.Success("Logs retrieved.", map[string]interface{}{"logs": ed.Logs(p.FilterText)}), nil
	case "clear":
		ed.ClearConsole()
		return protocol.Success("Console cleared.", nil), nil
	default:
		return protocol.Error("Unknown action: "+p.Action, nil), nil
	}
}

func (ed *Editor) handleExecuteMenuItem(_ context.Context, p ExecuteMenuItemParams) (protocol.Envelope, error) {
	if p.MenuPath == "" {
		return protocol.Error("menuPath parameter is required.", nil), nil
	}
	if err := ed.ExecuteMenuItem(p.MenuPath); err != nil {
		return protocol.Envelope{}, protocol.NewHandlerError(
			fmt.Sprintf("An error occurred while executing menu item '%s': %v", p.MenuPath, err),
			map[string]interface{}{"menuPath": p.MenuPath, "available": ed.MenuItems()},
		)
	}
	return protocol.Success(fmt.Sprintf("Menu item '%s' executed successfully.", p.MenuPath), nil), nil
}
