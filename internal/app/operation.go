package app

// Operation identifies the CLI command being run and tracks whether it
// has been written to the operations log. Read-only commands never are;
// mutating commands record themselves once, after they succeed.
type Operation struct {
	Type     string
	recorded bool
}

// NewOperation creates a new in-memory operation record.
func NewOperation(opType string) *Operation {
	return &Operation{Type: opType}
}

// Recorded returns true if this operation has been written to the log.
func (op *Operation) Recorded() bool {
	return op.recorded
}
