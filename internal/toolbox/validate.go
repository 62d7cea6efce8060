package toolbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// validateArguments checks args against a tool's raw JSON Schema before
// the Toolbox forwards the call to a pooled client. A schema violation
// short-circuits dispatch without acquiring a connection (spec §4.8), so a
// call that would fail server-side anyway never costs a pool slot.
func validateArguments(rawSchema json.RawMessage, args map[string]any) error {
	if len(rawSchema) == 0 {
		return nil
	}
	schema, err := compileSchema(rawSchema)
	if err != nil {
		// A malformed schema on a registered tool is the registrar's
		// fault, not the caller's; don't block dispatch over it.
		return nil
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return schema.Validate(decoded)
}

var schemaCache sync.Map

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
