// Package event defines the progress events a healing run emits and a
// broadcast broker that fans them out to listeners such as the SSE stream.
package event

import "encoding/json"

// Type identifies the kind of progress event.
type Type string

const (
	TypeStatus            Type = "status"
	TypeStep              Type = "step"
	TypeClone             Type = "clone"
	TypeAnalysis          Type = "analysis"
	TypeBranch            Type = "branch"
	TypeFixes             Type = "fixes"
	TypeFixApplied        Type = "fix_applied"
	TypeCommit            Type = "commit"
	TypeIterationStart    Type = "iteration_start"
	TypeTestResult        Type = "test_result"
	TypeAllPassed         Type = "all_passed"
	TypeFilesNeeded       Type = "files_needed"
	TypeFileContents      Type = "file_contents"
	TypeNoFixes           Type = "no_fixes"
	TypeNoFixesApplied    Type = "no_fixes_applied"
	TypeIterationComplete Type = "iteration_complete"
	TypeMaxIterations     Type = "max_iterations"
	TypeError             Type = "error"
	TypeDone              Type = "done"
)

// Event is one progress update. Data keys are merged alongside the type
// field when serialized, so listeners see a flat JSON object.
type Event struct {
	Type Type
	Data map[string]any
}

// New creates an event of the given type with the given payload.
func New(t Type, data map[string]any) Event {
	return Event{Type: t, Data: data}
}

// JSON serializes the event as a flat object with a "type" field.
func (e Event) JSON() []byte {
	flat := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		flat[k] = v
	}
	flat["type"] = string(e.Type)
	b, err := json.Marshal(flat)
	if err != nil {
		// Data values are plain maps, slices, and scalars in practice;
		// fall back to the bare type rather than dropping the event.
		b, _ = json.Marshal(map[string]string{"type": string(e.Type)})
	}
	return b
}
