package server

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// wsRequestSchema validates the single inbound WebSocket frame shape the
// runtime accepts: an execute request naming an agent and a task.
const wsRequestSchema = `{
  "type": "object",
  "required": ["action", "agent", "task"],
  "properties": {
    "action": { "const": "execute" },
    "agent": { "type": "string", "minLength": 1 },
    "task": { "type": "string", "minLength": 1 },
    "context": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    }
  },
  "additionalProperties": true
}`

type wsSchemaRegistry struct {
	once    sync.Once
	initErr error
	request *jsonschema.Schema
}

var wsSchemas wsSchemaRegistry

func initWSSchemas() error {
	wsSchemas.once.Do(func() {
		compiled, err := jsonschema.CompileString("ws_execute_request", wsRequestSchema)
		if err != nil {
			wsSchemas.initErr = err
			return
		}
		wsSchemas.request = compiled
	})
	return wsSchemas.initErr
}

func validateWSExecuteFrame(raw []byte) error {
	if err := initWSSchemas(); err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return wsSchemas.request.Validate(payload)
}
