package message

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIsPrompt(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"operator text", UserText("hi"), true},
		{"tool results", UserResults(ToolResult{ToolUseID: "t1", Content: "ok"}), false},
		{"assistant", Message{Role: RoleAssistant, Content: []Block{Text{Text: "hello"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsPrompt(); got != tt.want {
				t.Errorf("IsPrompt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarshalUsesTypeDiscriminator(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: []Block{
		Text{Text: "creating"},
		ToolUse{ID: "tu_1", Name: "create_script", Input: map[string]any{"script_name": "hello.js"}},
	}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"role":"assistant"`, `"type":"text"`, `"type":"tool_use"`, `"name":"create_script"`} {
		if !strings.Contains(s, want) {
			t.Errorf("marshalled %s missing %s", s, want)
		}
	}

	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	uses := back.ToolUses()
	if len(uses) != 1 || uses[0].ID != "tu_1" {
		t.Fatalf("tool uses after decode = %+v", uses)
	}
	if name, _ := uses[0].StringInput("script_name"); name != "hello.js" {
		t.Errorf("script_name = %q", name)
	}
}

func TestMarshalToolUseEmptyInput(t *testing.T) {
	data, err := json.Marshal(Message{Role: RoleAssistant, Content: []Block{ToolUse{ID: "x", Name: "explain_only"}}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"input":{}`) {
		t.Errorf("expected empty input object, got %s", data)
	}
}

func TestMarshalKeepsRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		block Block
		want  string
	}{
		{"empty text", Text{}, `{"type":"text","text":""}`},
		{"nil input", ToolUse{ID: "x", Name: "create_script"}, `{"type":"tool_use","id":"x","name":"create_script","input":{}}`},
		{"empty result", ToolResult{ToolUseID: "x"}, `{"type":"tool_result","tool_use_id":"x","content":""}`},
		{"error result", ToolResult{ToolUseID: "x", Content: "Error: bad", IsError: true}, `{"type":"tool_result","tool_use_id":"x","content":"Error: bad","is_error":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Message{Role: RoleUser, Content: []Block{tt.block}})
			if err != nil {
				t.Fatal(err)
			}
			want := `{"role":"user","content":[` + tt.want + `]}`
			if string(data) != want {
				t.Errorf("got %s, want %s", data, want)
			}
		})
	}
}

func TestUnmarshalRejectsUnknown(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":[{"type":"image"}]}`), &m); err == nil {
		t.Error("expected error for unknown block type")
	}
	if err := json.Unmarshal([]byte(`{"role":"system","content":[]}`), &m); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestTextAndResults(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: []Block{Text{Text: "a"}, Text{Text: "b"}}}
	if got := m.Text(); got != "a\nb" {
		t.Errorf("Text() = %q", got)
	}
	r := UserResults(ToolResult{ToolUseID: "1", Content: "x"}, ToolResult{ToolUseID: "2", Content: "y", IsError: true})
	res := r.ToolResults()
	if len(res) != 2 || !res[1].IsError {
		t.Errorf("ToolResults() = %+v", res)
	}
}

func TestStringInputWrongType(t *testing.T) {
	u := ToolUse{Input: map[string]any{"code": 42}}
	if _, ok := u.StringInput("code"); ok {
		t.Error("non-string input should not be reported as string")
	}
	if _, ok := u.StringInput("missing"); ok {
		t.Error("missing field should not be reported")
	}
}
