// Package schema validates published signals against per-topic JSON
// schemas discovered from the project tree.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kbukum/flowtest/errors"
	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/signal"
	"github.com/kbukum/flowtest/util"
)

// SchemaFileName is the per-project schema manifest: a JSON object
// mapping topic names to JSON schema documents.
const SchemaFileName = "topic_schema.json"

// Validator validates signals published to topics it holds a schema
// for. Topics without a schema pass unchecked.
type Validator struct {
	schemas map[string]*jsonschema.Schema
	log     *logger.Logger
}

// Discover looks for a schema manifest near the project root, trying in
// order the root itself, its tests/ subdirectory, and its parent. The
// first manifest found wins. Topic keys in the manifest may reference
// environment variables with the [[ NAME ]] form; they are expanded
// using vars. A missing manifest is not an error and yields a validator
// that accepts everything.
func Discover(root string, vars map[string]string, log *logger.Logger) (*Validator, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("schema")

	candidates := []string{
		filepath.Join(root, SchemaFileName),
		filepath.Join(root, "tests", SchemaFileName),
		filepath.Join(root, "..", SchemaFileName),
	}
	for _, path := range candidates {
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Configuration("read schema manifest %s: %v", path, err)
		}
		log.Debug("schema manifest found", logger.Fields("path", path))
		return Load(raw, vars, log)
	}
	return &Validator{schemas: map[string]*jsonschema.Schema{}, log: log}, nil
}

// Load compiles a schema manifest from its raw JSON contents.
func Load(raw []byte, vars map[string]string, log *logger.Logger) (*Validator, error) {
	if log == nil {
		log = logger.Nop()
	}
	var manifest map[string]json.RawMessage
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, errors.Configuration("parse schema manifest: %v", err)
	}

	schemas := make(map[string]*jsonschema.Schema, len(manifest))
	for topic, doc := range manifest {
		topic = util.ExpandVarsString(topic, vars)
		compiled, err := compile(topic, doc)
		if err != nil {
			return nil, errors.Configuration("compile schema for topic %s: %v", topic, err)
		}
		schemas[topic] = compiled
	}
	return &Validator{schemas: schemas, log: log}, nil
}

func compile(topic string, doc json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("mem://topics/%s.json", topic)
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// Topics returns the topics the validator holds schemas for, sorted.
func (v *Validator) Topics() []string {
	return util.Keys(v.schemas)
}

// HasSchema reports whether the topic carries a schema.
func (v *Validator) HasSchema(topic string) bool {
	_, ok := v.schemas[topic]
	return ok
}

// Validate checks a signal's attributes against the topic's schema.
// Topics without a schema always pass.
func (v *Validator) Validate(topic string, sig *signal.Signal) error {
	compiled, ok := v.schemas[topic]
	if !ok {
		return nil
	}
	payload, err := jsonRoundTrip(sig.Attributes())
	if err != nil {
		return errors.SchemaValidation(topic, err)
	}
	if err := compiled.Validate(payload); err != nil {
		v.log.Debug("signal failed schema validation", logger.Fields(
			logger.FieldTopic, topic,
			logger.FieldError, err.Error(),
		))
		return errors.SchemaValidation(topic, err)
	}
	return nil
}

// jsonRoundTrip normalizes native Go values into the decoded-JSON forms
// the schema library expects (float64 numbers, map[string]any objects).
func jsonRoundTrip(attrs map[string]any) (any, error) {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
