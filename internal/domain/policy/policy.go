// Package policy classifies requested tool invocations for the confirmation
// gate. Two independent checks apply: the model backend's declared
// requires_confirmation flag and the client's own preview requirement.
package policy

import "github.com/lpajunen/aiwebengine-assistant/internal/domain/tool"

// Decision is the gate's routing for a single tool use.
type Decision string

const (
	// DecisionAllow applies the tool use immediately without operator input.
	DecisionAllow Decision = "allow"
	// DecisionAsk holds the tool use for preview and operator approval.
	DecisionAsk Decision = "ask"
	// DecisionDeny answers the tool use with an error result; nothing runs.
	DecisionDeny Decision = "deny"
)

// serverConfirmed lists the tools the model backend flags as requiring confirmation.
var serverConfirmed = map[string]bool{
	tool.EditScript:   true,
	tool.DeleteScript: true,
	tool.EditAsset:    true,
	tool.DeleteAsset:  true,
}

// Classification is the outcome of both gate checks for one tool use.
type Classification struct {
	Tool string `json:"tool"`
	// Declared is the requires_confirmation flag as sent by the model backend.
	Declared bool `json:"declared"`
	// ServerConfirmation is true when the backend declared the flag or the
	// tool belongs to the confirmation set.
	ServerConfirmation bool `json:"server_confirmation"`
	// ClientPreview is true for every known tool except explain_only.
	ClientPreview bool     `json:"client_preview"`
	Decision      Decision `json:"decision"`
}

// Mismatch reports whether the backend's declared flag disagrees with the
// expected confirmation set.
func (c Classification) Mismatch() bool {
	return tool.Known(c.Tool) && c.Declared != serverConfirmed[c.Tool]
}

// ExpectsServerConfirmation reports whether name is in the confirmation set.
func ExpectsServerConfirmation(name string) bool {
	return serverConfirmed[name]
}

// RequiresPreview reports whether name must pass the diff/preview step.
func RequiresPreview(name string) bool {
	return tool.Mutating(name)
}

// Classify runs both checks for a tool use.
func Classify(name string, declared bool) Classification {
	c := Classification{
		Tool:               name,
		Declared:           declared,
		ServerConfirmation: declared || serverConfirmed[name],
		ClientPreview:      RequiresPreview(name),
	}
	switch {
	case !tool.Known(name):
		c.Decision = DecisionDeny
	case c.ServerConfirmation || c.ClientPreview:
		c.Decision = DecisionAsk
	default:
		c.Decision = DecisionAllow
	}
	return c
}
