package policy

import (
	"testing"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		tool       string
		declared   bool
		want       Decision
		wantServer bool
		wantClient bool
		mismatch   bool
	}{
		{"explain auto", tool.ExplainOnly, false, DecisionAllow, false, false, false},
		{"create script previewed without server flag", tool.CreateScript, false, DecisionAsk, false, true, false},
		{"create asset previewed without server flag", tool.CreateAsset, false, DecisionAsk, false, true, false},
		{"edit script flagged", tool.EditScript, true, DecisionAsk, true, true, false},
		{"delete script flagged", tool.DeleteScript, true, DecisionAsk, true, true, false},
		{"edit asset flag omitted", tool.EditAsset, false, DecisionAsk, true, true, true},
		{"delete asset flagged", tool.DeleteAsset, true, DecisionAsk, true, true, false},
		{"explain flagged by server", tool.ExplainOnly, true, DecisionAsk, true, false, true},
		{"unknown tool", "format_disk", false, DecisionDeny, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.tool, tt.declared)
			if c.Decision != tt.want {
				t.Errorf("Decision = %s, want %s", c.Decision, tt.want)
			}
			if c.ServerConfirmation != tt.wantServer {
				t.Errorf("ServerConfirmation = %v, want %v", c.ServerConfirmation, tt.wantServer)
			}
			if c.ClientPreview != tt.wantClient {
				t.Errorf("ClientPreview = %v, want %v", c.ClientPreview, tt.wantClient)
			}
			if c.Mismatch() != tt.mismatch {
				t.Errorf("Mismatch() = %v, want %v", c.Mismatch(), tt.mismatch)
			}
		})
	}
}

func TestChecksAreIndependent(t *testing.T) {
	// Creations are not server confirmed yet still previewed.
	for _, name := range []string{tool.CreateScript, tool.CreateAsset} {
		if ExpectsServerConfirmation(name) {
			t.Errorf("%s should not be in the server confirmation set", name)
		}
		if !RequiresPreview(name) {
			t.Errorf("%s must still require preview", name)
		}
	}
	if RequiresPreview(tool.ExplainOnly) {
		t.Error("explain_only must not require preview")
	}
}
