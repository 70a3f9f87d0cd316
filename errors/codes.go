package errors

// Code classifies a harness failure.
type Code string

// Setup errors (fatal to the test before any assertion runs)
const (
	// CodeConfiguration indicates an unresolvable service, a malformed
	// override, or any other problem building the block graph.
	CodeConfiguration Code = "CONFIGURATION"
	// CodeAmbiguousBlock indicates a block name that matched more than
	// one block id.
	CodeAmbiguousBlock Code = "AMBIGUOUS_BLOCK_REFERENCE"
	// CodeNotFound indicates a block, service, or command that could not
	// be resolved.
	CodeNotFound Code = "NOT_FOUND"
)

// Runtime errors
const (
	// CodeSchemaValidation indicates a signal on a schema-covered topic
	// failed validation. This signals drift between the service and its
	// schema, not a defect in the test's expectations.
	CodeSchemaValidation Code = "SCHEMA_VALIDATION"
	// CodeAssertion is the normal test-failure path: a count or shape
	// expectation that did not hold.
	CodeAssertion Code = "ASSERTION"
)
