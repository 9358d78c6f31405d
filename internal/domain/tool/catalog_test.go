package tool

import (
	"errors"
	"testing"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/message"
)

func TestCatalogRequiredFields(t *testing.T) {
	want := map[string][]string{
		ExplainOnly:  {"explanation"},
		CreateScript: {"script_name", "code", "message"},
		EditScript:   {"script_name", "original_code", "code", "message"},
		DeleteScript: {"script_name", "message"},
		CreateAsset:  {"script_name", "asset_path", "code", "message"},
		EditAsset:    {"script_name", "asset_path", "original_code", "code", "message"},
		DeleteAsset:  {"asset_path", "message"},
	}
	specs := Catalog()
	if len(specs) != len(want) {
		t.Fatalf("catalog has %d entries, want %d", len(specs), len(want))
	}
	for _, s := range specs {
		fields, ok := want[s.Name]
		if !ok {
			t.Errorf("unexpected tool %q", s.Name)
			continue
		}
		req, _ := s.InputSchema["required"].([]string)
		if len(req) != len(fields) {
			t.Errorf("%s required = %v, want %v", s.Name, req, fields)
			continue
		}
		for i := range fields {
			if req[i] != fields[i] {
				t.Errorf("%s required[%d] = %s, want %s", s.Name, i, req[i], fields[i])
			}
		}
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	specs := Catalog()
	specs[0].Name = "tampered"
	req := specs[1].InputSchema["required"].([]string)
	req[0] = "tampered"

	again := Catalog()
	if again[0].Name != ExplainOnly {
		t.Errorf("catalog name mutated: %s", again[0].Name)
	}
	if got := again[1].InputSchema["required"].([]string)[0]; got != FieldScriptName {
		t.Errorf("catalog schema mutated: %s", got)
	}
}

func TestMutating(t *testing.T) {
	if Mutating(ExplainOnly) {
		t.Error("explain_only must not be mutating")
	}
	if Mutating("unknown") {
		t.Error("unknown tool must not be mutating")
	}
	for _, n := range []string{CreateScript, EditScript, DeleteScript, CreateAsset, EditAsset, DeleteAsset} {
		if !Mutating(n) {
			t.Errorf("%s should be mutating", n)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		use     message.ToolUse
		wantErr bool
	}{
		{"ok explain", message.ToolUse{ID: "tu", Name: ExplainOnly, Input: map[string]any{"explanation": "x"}}, false},
		{"unknown tool", message.ToolUse{ID: "tu", Name: "rename_script"}, true},
		{"missing code", message.ToolUse{ID: "tu", Name: CreateScript, Input: map[string]any{"script_name": "a.js", "message": "m"}}, true},
		{"non-string", message.ToolUse{ID: "tu", Name: DeleteScript, Input: map[string]any{"script_name": 1, "message": "m"}}, true},
		{"blank target", message.ToolUse{ID: "tu", Name: DeleteAsset, Input: map[string]any{"asset_path": " ", "message": "m"}}, true},
		{"missing id", message.ToolUse{Name: ExplainOnly, Input: map[string]any{"explanation": "x"}}, true},
		{"blank id", message.ToolUse{ID: " ", Name: ExplainOnly, Input: map[string]any{"explanation": "x"}}, true},
		{"ok delete", message.ToolUse{ID: "tu", Name: DeleteAsset, Input: map[string]any{"asset_path": "/a.css", "message": "m"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.use)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error should wrap ErrValidation: %v", err)
			}
		})
	}
}

func TestToChange(t *testing.T) {
	c, err := ToChange(message.ToolUse{ID: "tu1", Name: EditAsset, Input: map[string]any{
		"script_name": "app.js", "asset_path": "/style.css", "original_code": "a{}", "code": "b{}", "message": "m",
	}})
	if err != nil {
		t.Fatal(err)
	}
	want := change.PendingChange{ToolUseID: "tu1", TargetName: "/style.css", NewContent: "b{}", Action: change.ActionEdit, TargetType: change.TargetAsset}
	if c != want {
		t.Errorf("ToChange() = %+v, want %+v", c, want)
	}

	d, err := ToChange(message.ToolUse{ID: "tu2", Name: DeleteScript, Input: map[string]any{"script_name": "old.js", "message": "m"}})
	if err != nil {
		t.Fatal(err)
	}
	if d.Action != change.ActionDelete || d.NewContent != "" || d.TargetName != "old.js" {
		t.Errorf("delete change = %+v", d)
	}

	if _, err := ToChange(message.ToolUse{ID: "tu3", Name: ExplainOnly, Input: map[string]any{"explanation": "x"}}); err == nil {
		t.Error("explain_only should not produce a change")
	}
}
