package change

import "testing"

func TestSuccessMessage(t *testing.T) {
	tests := []struct {
		c    PendingChange
		want string
	}{
		{PendingChange{Action: ActionCreate, TargetType: TargetScript, TargetName: "hello.js"}, "Successfully created script: hello.js"},
		{PendingChange{Action: ActionEdit, TargetType: TargetScript, TargetName: "hello.js"}, "Successfully updated script: hello.js"},
		{PendingChange{Action: ActionDelete, TargetType: TargetAsset, TargetName: "/logo.svg"}, "Successfully deleted asset: /logo.svg"},
	}
	for _, tt := range tests {
		if got := tt.c.SuccessMessage(); got != tt.want {
			t.Errorf("SuccessMessage() = %q, want %q", got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := PendingChange{ToolUseID: "t", TargetName: "a.js", Action: ActionEdit, TargetType: TargetScript}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid change rejected: %v", err)
	}

	bad := []PendingChange{
		{TargetName: "a.js", Action: ActionEdit, TargetType: TargetScript},
		{ToolUseID: "t", Action: ActionEdit, TargetType: TargetScript},
		{ToolUseID: "t", TargetName: "a.js", Action: "rename", TargetType: TargetScript},
		{ToolUseID: "t", TargetName: "a.js", Action: ActionEdit, TargetType: "route"},
	}
	for i := range bad {
		if err := bad[i].Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestDestructive(t *testing.T) {
	del := PendingChange{Action: ActionDelete}
	edit := PendingChange{Action: ActionEdit}
	if !del.Destructive() || edit.Destructive() {
		t.Error("only delete should be destructive")
	}
}
