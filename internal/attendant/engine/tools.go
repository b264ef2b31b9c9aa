package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nordvoice/attendant/internal/attendant/memory"
)

// Canonical tool names referenced by profile tool_names lists.
const (
	ToolRecordInformation = "record_information"
	ToolLookupInformation = "lookup_information"
	ToolAddNote           = "add_note"
	ToolEndCall           = "end_call"
)

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

// NewRecordInformationTool stores a caller-provided field in conversation
// memory. Plain records never overwrite; a correction replaces the value
// and leaves a superseded note behind.
func NewRecordInformationTool(mem *memory.Memory) Tool {
	return &FuncTool{
		ToolName: ToolRecordInformation,
		Def: Definition{
			Description: "Store one piece of information the caller provided, such as their name or the purpose of the call. Set correction to true only when the caller is correcting something already stored.",
			Parameters: map[string]any{
				"field": map[string]any{
					"type":        "string",
					"description": "Short snake_case field name, e.g. name, phone, purpose.",
				},
				"value": map[string]any{
					"type":        "string",
					"description": "The value the caller provided.",
				},
				"correction": map[string]any{
					"type":        "boolean",
					"description": "True when the caller is correcting an earlier value.",
				},
			},
			Required: []string{"field", "value", "correction"},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			field := stringArg(args, "field")
			value := stringArg(args, "value")
			if field == "" {
				return nil, fmt.Errorf("record_information: field is required")
			}
			correction, _ := args["correction"].(bool)

			if correction {
				mem.Correct(field, value)
				return map[string]any{"status": "corrected", "field": field, "value": value}, nil
			}

			if err := mem.Record(field, value); err != nil {
				if errors.Is(err, memory.ErrFieldTaken) {
					current, _ := mem.Query(field)
					return map[string]any{
						"status":  "already_recorded",
						"field":   field,
						"current": current,
						"hint":    "repeat with correction=true if the caller corrected this value",
					}, nil
				}
				return nil, err
			}
			return map[string]any{"status": "recorded", "field": field, "value": value}, nil
		},
	}
}

// NewLookupInformationTool reads a field back from conversation memory.
func NewLookupInformationTool(mem *memory.Memory) Tool {
	return &FuncTool{
		ToolName: ToolLookupInformation,
		Def: Definition{
			Description: "Look up a piece of information already stored during this call.",
			Parameters: map[string]any{
				"field": map[string]any{
					"type":        "string",
					"description": "The field name to look up.",
				},
			},
			Required: []string{"field"},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			field := stringArg(args, "field")
			if field == "" {
				return nil, fmt.Errorf("lookup_information: field is required")
			}
			value, found := mem.Query(field)
			return map[string]any{"field": field, "value": value, "found": found}, nil
		},
	}
}

// NewAddNoteTool appends a free-form annotation to conversation memory.
func NewAddNoteTool(mem *memory.Memory) Tool {
	return &FuncTool{
		ToolName: ToolAddNote,
		Def: Definition{
			Description: "Add a free-form note about the conversation that does not fit a named field.",
			Parameters: map[string]any{
				"note": map[string]any{
					"type":        "string",
					"description": "The note text.",
				},
			},
			Required: []string{"note"},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			note := stringArg(args, "note")
			if note == "" {
				return nil, fmt.Errorf("add_note: note is required")
			}
			mem.Annotate(note)
			return map[string]any{"status": "noted"}, nil
		},
	}
}

// NewEndCallTool signals that the conversation has reached its natural end.
// The end callback lands in the session's phase-guarded terminate entry;
// the farewell is spoken by the wind-down sequence, not by the model.
func NewEndCallTool(end func()) Tool {
	return &FuncTool{
		ToolName: ToolEndCall,
		Def: Definition{
			Description: "End the call once the caller's purpose is handled and they have nothing further. The goodbye message is played automatically.",
			Parameters:  map[string]any{},
			Required:    []string{},
		},
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			if end != nil {
				end()
			}
			return map[string]any{"status": "call_ending"}, nil
		},
	}
}

// SessionTools builds the standard registry for one session: the three
// memory tools plus end_call wired to the given callback.
func SessionTools(mem *memory.Memory, end func()) *Registry {
	reg := NewRegistry()
	reg.Register(NewRecordInformationTool(mem))
	reg.Register(NewLookupInformationTool(mem))
	reg.Register(NewAddNoteTool(mem))
	reg.Register(NewEndCallTool(end))
	return reg
}
