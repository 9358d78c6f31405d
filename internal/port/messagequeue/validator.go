package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch {
	case strings.HasPrefix(subject, "editor.session."):
		target = &SessionPayload{}
	case subject == SubjectToolPending:
		target = &ToolPendingPayload{}
	case subject == SubjectToolResolved:
		target = &ToolResolvedPayload{}
	case subject == SubjectChangeCommitted, subject == SubjectChangeFailed:
		target = &ChangePayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
