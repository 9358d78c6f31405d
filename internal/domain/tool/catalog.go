// Package tool defines the static catalog of operations the model backend
// may invoke, their input contracts and how each maps onto a content change.
package tool

import (
	"github.com/lpajunen/aiwebengine-assistant/internal/domain/change"
)

// Tool names.
const (
	ExplainOnly  = "explain_only"
	CreateScript = "create_script"
	EditScript   = "edit_script"
	DeleteScript = "delete_script"
	CreateAsset  = "create_asset"
	EditAsset    = "edit_asset"
	DeleteAsset  = "delete_asset"
)

// Input field names.
const (
	FieldExplanation  = "explanation"
	FieldScriptName   = "script_name"
	FieldAssetPath    = "asset_path"
	FieldOriginalCode = "original_code"
	FieldCode         = "code"
	FieldMessage      = "message"
)

// Spec is one catalog entry as sent to the model backend.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// definition is the catalog's internal view of a tool.
type definition struct {
	name        string
	description string
	required    []string
	action      change.Action
	target      change.TargetType
	// targetField names the input field that identifies the artifact.
	targetField string
}

var fieldDescriptions = map[string]string{
	FieldExplanation:  "Explanation or answer shown to the user",
	FieldScriptName:   "Script name or URI, e.g. hello.js",
	FieldAssetPath:    "Asset path, e.g. /logo.svg",
	FieldOriginalCode: "The current content being replaced",
	FieldCode:         "The complete new content",
	FieldMessage:      "Short summary of the change for the user",
}

var definitions = []definition{
	{
		name:        ExplainOnly,
		description: "Answer or explain without changing any script or asset.",
		required:    []string{FieldExplanation},
	},
	{
		name:        CreateScript,
		description: "Create a new script with the given content.",
		required:    []string{FieldScriptName, FieldCode, FieldMessage},
		action:      change.ActionCreate,
		target:      change.TargetScript,
		targetField: FieldScriptName,
	},
	{
		name:        EditScript,
		description: "Replace the content of an existing script.",
		required:    []string{FieldScriptName, FieldOriginalCode, FieldCode, FieldMessage},
		action:      change.ActionEdit,
		target:      change.TargetScript,
		targetField: FieldScriptName,
	},
	{
		name:        DeleteScript,
		description: "Delete an existing script.",
		required:    []string{FieldScriptName, FieldMessage},
		action:      change.ActionDelete,
		target:      change.TargetScript,
		targetField: FieldScriptName,
	},
	{
		name:        CreateAsset,
		description: "Create a new static asset, usually referenced by a script.",
		required:    []string{FieldScriptName, FieldAssetPath, FieldCode, FieldMessage},
		action:      change.ActionCreate,
		target:      change.TargetAsset,
		targetField: FieldAssetPath,
	},
	{
		name:        EditAsset,
		description: "Replace the content of an existing static asset.",
		required:    []string{FieldScriptName, FieldAssetPath, FieldOriginalCode, FieldCode, FieldMessage},
		action:      change.ActionEdit,
		target:      change.TargetAsset,
		targetField: FieldAssetPath,
	},
	{
		name:        DeleteAsset,
		description: "Delete an existing static asset.",
		required:    []string{FieldAssetPath, FieldMessage},
		action:      change.ActionDelete,
		target:      change.TargetAsset,
		targetField: FieldAssetPath,
	},
}

var byName = func() map[string]*definition {
	m := make(map[string]*definition, len(definitions))
	for i := range definitions {
		m[definitions[i].name] = &definitions[i]
	}
	return m
}()

// Catalog returns the tool specs in a fixed order. Each call builds fresh
// values so callers cannot mutate the catalog.
func Catalog() []Spec {
	out := make([]Spec, len(definitions))
	for i := range definitions {
		out[i] = definitions[i].spec()
	}
	return out
}

// Known reports whether name is in the catalog.
func Known(name string) bool {
	_, ok := byName[name]
	return ok
}

// Mutating reports whether the tool changes a script or asset.
func Mutating(name string) bool {
	d, ok := byName[name]
	return ok && d.action != ""
}

func (d *definition) spec() Spec {
	props := make(map[string]any, len(d.required))
	for _, f := range d.required {
		props[f] = map[string]any{
			"type":        "string",
			"description": fieldDescriptions[f],
		}
	}
	return Spec{
		Name:        d.name,
		Description: d.description,
		InputSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   append([]string(nil), d.required...),
		},
	}
}
