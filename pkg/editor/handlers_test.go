package editor

import (
	"context"
	"testing"

	"github.com/morezero/command-bridge/pkg/dispatcher"
	"github.com/morezero/command-bridge/pkg/pending"
	"github.com/morezero/command-bridge/pkg/protocol"
)

const handlersTestPrefix = "editor:handlers_test"

func run(t *testing.T, ed *Editor, raw string) *protocol.Envelope {
	t.Helper()
	d := dispatcher.NewDispatcher(Table(ed), pending.NewRegistry(0))
	resp, _ := d.Process(context.Background(), "test", raw)
	env, err := protocol.ParseEnvelope(resp)
	if err != nil {
		t.Fatalf("%s - bad envelope %s: %v", handlersTestPrefix, resp, err)
	}
	return env
}

func TestTable_Types(t *testing.T) {
	got := Table(New()).Types()
	want := []string{CmdExecuteMenuItem, CmdManageEditor, CmdNoopEcho, CmdReadConsole}
	if len(got) != len(want) {
		t.Fatalf("%s - Types = %v", handlersTestPrefix, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s - Types[%d] = %s, want %s", handlersTestPrefix, i, got[i], want[i])
		}
	}
}

func TestNoopEcho(t *testing.T) {
	env := run(t, New(), `{"type":"noop_echo","parameters":{"x":1}}`)
	data, _ := env.Data.(map[string]interface{})
	if env.Status != protocol.StatusSuccess || data["x"] != float64(1) {
		t.Errorf("%s - echo = %+v", handlersTestPrefix, env)
	}
}

func TestManageEditor(t *testing.T) {
	ed := New()
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		wantMsg string
	}{
		{"missing action", `{"type":"manage_editor","parameters":{}}`, true, "Action is required for manage_editor."},
		{"play", `{"type":"manage_editor","parameters":{"action":"PLAY"}}`, false, "Editor entering play mode."},
		{"pause", `{"type":"manage_editor","parameters":{"action":"pause"}}`, false, "Editor paused."},
		{"add tag", `{"type":"manage_editor","parameters":{"action":"add_tag","tagName":"Enemy"}}`, false, "Tag 'Enemy' added."},
		{"duplicate tag", `{"type":"manage_editor","parameters":{"action":"add_tag","tagName":"Enemy"}}`, true, "Tag 'Enemy' already exists."},
		{"tag without name", `{"type":"manage_editor","parameters":{"action":"add_tag"}}`, true, "Tag name is required to add a tag."},
		{"unknown", `{"type":"manage_editor","parameters":{"action":"fly"}}`, true, "Unknown action for manage_editor: 'fly'"},
		{"bad params", `{"type":"manage_editor","parameters":{"action":5}}`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := run(t, ed, tt.raw)
			if env.IsError() != tt.wantErr {
				t.Fatalf("%s - status = %s (%s)", handlersTestPrefix, env.Status, env.Message)
			}
			if tt.wantMsg != "" && env.Message != tt.wantMsg {
				t.Errorf("%s - message = %q, want %q", handlersTestPrefix, env.Message, tt.wantMsg)
			}
		})
	}

	env := run(t, ed, `{"type":"manage_editor","parameters":{"action":"get_state"}}`)
	state, _ := env.Data.(map[string]interface{})
	if state["isPlaying"] != true || state["isPaused"] != true || state["isCompiling"] != false {
		t.Errorf("%s - state = %v", handlersTestPrefix, state)
	}

	run(t, ed, `{"type":"manage_editor","@params":{"action":"stop"}}`)
	if ed.State().IsPlaying {
		t.Errorf("%s - stop did not leave play mode", handlersTestPrefix)
	}
}

func TestReadConsole(t *testing.T) {
	ed := New()
	ed.Log("Shader compiled", ModeLog)
	ed.Log("Missing reference", ModeError)

	env := run(t, ed, `{"type":"read_console","parameters":{"action":"get","filterText":"Missing"}}`)
	data, _ := env.Data.(map[string]interface{})
	logs, _ := data["logs"].([]interface{})
	if len(logs) != 1 {
		t.Fatalf("%s - logs = %v", handlersTestPrefix, data["logs"])
	}
	entry, _ := logs[0].(map[string]interface{})
	if entry["message"] != "Missing reference" || entry["mode"] != float64(ModeError) {
		t.Errorf("%s - entry = %v", handlersTestPrefix, entry)
	}

	if env := run(t, ed, `{"type":"read_console","parameters":"{\"action\":\"clear\"}"}`); env.Message != "Console cleared." {
		t.Errorf("%s - clear = %+v", handlersTestPrefix, env)
	}
	if len(ed.Logs("")) != 0 {
		t.Errorf("%s - console not cleared", handlersTestPrefix)
	}

	if env := run(t, ed, `{"type":"read_console","parameters":{"action":"tail"}}`); env.Message != "Unknown action: tail" {
		t.Errorf("%s - unknown = %+v", handlersTestPrefix, env)
	}
	if env := run(t, ed, `{"type":"read_console"}`); env.Message != "Action is required." {
		t.Errorf("%s - missing action = %+v", handlersTestPrefix, env)
	}
}

func TestExecuteMenuItem(t *testing.T) {
	ed := New()

	env := run(t, ed, `{"type":"execute_menu_item","parameters":{"menuPath":"File/Save Project"}}`)
	if env.Message != "Menu item 'File/Save Project' executed successfully." || ed.Saves() != 1 {
		t.Errorf("%s - save = %+v saves=%d", handlersTestPrefix, env, ed.Saves())
	}

	env = run(t, ed, `{"type":"execute_menu_item","parameters":{"menuPath":"Nope/Item"}}`)
	if !env.IsError() {
		t.Fatalf("%s - missing menu item should fail", handlersTestPrefix)
	}
	data, _ := env.Data.(map[string]interface{})
	if data["menuPath"] != "Nope/Item" {
		t.Errorf("%s - detail = %v", handlersTestPrefix, data)
	}

	if env := run(t, ed, `{"type":"execute_menu_item","parameters":{}}`); env.Message != "menuPath parameter is required." {
		t.Errorf("%s - missing path = %+v", handlersTestPrefix, env)
	}

	run(t, ed, `{"type":"execute_menu_item","parameters":{"menuPath":"Edit/Play"}}`)
	if !ed.State().IsPlaying {
		t.Errorf("%s - Edit/Play should enter play mode", handlersTestPrefix)
	}
}
