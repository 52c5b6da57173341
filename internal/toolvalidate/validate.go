// Package toolvalidate checks tool-call arguments against each tool's
// declared parameter schema before dispatch, so a malformed call from the
// model surfaces as a tool-role error message instead of reaching
// Execute with the wrong shape.
package toolvalidate

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

// Validator compiles and caches one jsonschema.Schema per tool name, keyed
// by the tool's own Parameters(). A Validator is safe for concurrent use.
type Validator struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*jsonschema.Schema)}
}

// Validate compiles (or reuses the cached compile of) t's parameter
// schema and checks args against it. A tool with no declared properties
// is treated as accepting anything.
func (v *Validator) Validate(t tool.Tool, args map[string]interface{}) error {
	schema, err := v.compiledFor(t)
	if err != nil {
		return fmt.Errorf("tool %s: compile parameter schema: %w", t.Name(), err)
	}
	if schema == nil {
		return nil
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tool %s: encode arguments: %w", t.Name(), err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("tool %s: decode arguments: %w", t.Name(), err)
	}

	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tool %s: arguments invalid: %w", t.Name(), err)
	}
	return nil
}

func (v *Validator) compiledFor(t tool.Tool) (*jsonschema.Schema, error) {
	params := t.Parameters()
	if len(params) == 0 {
		return nil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	name := t.Name()
	if cached, ok := v.schemas[name]; ok {
		return cached, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	v.schemas[name] = compiled
	return compiled, nil
}

// Forget drops a tool's cached compiled schema, for when a tool's
// Parameters() can change at runtime (e.g. an MCP server re-advertising
// tools with a new schema after a reconnect).
func (v *Validator) Forget(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.schemas, name)
}
