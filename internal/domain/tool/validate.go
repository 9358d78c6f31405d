package tool

import (
	"fmt"
	"strings"

	"github.com/lpajunen/aiwebengine-assistant/internal/domain"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/message"
)

// Validate checks that use names a catalog tool and carries every required
// field as a string. Errors wrap domain.ErrValidation.
func Validate(use message.ToolUse) error {
	if strings.TrimSpace(use.ID) == "" {
		return fmt.Errorf("%w: %s: tool_use id is required", domain.ErrValidation, use.Name)
	}
	d, ok := byName[use.Name]
	if !ok {
		return fmt.Errorf("%w: unknown tool %q", domain.ErrValidation, use.Name)
	}
	var missing []string
	for _, f := range d.required {
		v, present := use.Input[f]
		if !present {
			missing = append(missing, f)
			continue
		}
		if _, isString := v.(string); !isString {
			return fmt.Errorf("%w: %s: field %q must be a string", domain.ErrValidation, use.Name, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing required fields: %s", domain.ErrValidation, use.Name, strings.Join(missing, ", "))
	}
	if d.targetField != "" {
		if s, _ := use.StringInput(d.targetField); strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s: field %q must not be empty", domain.ErrValidation, use.Name, d.targetField)
		}
	}
	return nil
}

// ToChange derives the PendingChange a mutating tool use would commit.
// explain_only and unknown tools yield a validation error.
func ToChange(use message.ToolUse) (change.PendingChange, error) {
	if err := Validate(use); err != nil {
		return change.PendingChange{}, err
	}
	d := byName[use.Name]
	if d.action == "" {
		return change.PendingChange{}, fmt.Errorf("%w: %s does not change content", domain.ErrValidation, use.Name)
	}
	target, _ := use.StringInput(d.targetField)
	c := change.PendingChange{
		ToolUseID:  use.ID,
		TargetName: target,
		Action:     d.action,
		TargetType: d.target,
	}
	if d.action != change.ActionDelete {
		c.NewContent, _ = use.StringInput(FieldCode)
	}
	return c, nil
}
