package logger

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldService   = "service"
	FieldBlock     = "block"
	FieldBlockID   = "block_id"
	FieldTopic     = "topic"
	FieldTerminal  = "terminal"
	FieldInput     = "input"
	FieldCount     = "count"
	FieldError     = "error"
)

// Fields builds a map[string]any from alternating key-value pairs.
//
//	log.Debug("signals delivered", logger.Fields("topic", "topic3", "count", 2))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
