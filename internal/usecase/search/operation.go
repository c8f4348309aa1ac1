package search

import "context"

// Apply mutates the pipeline state with an operation's output.
type Apply func(st *State)

// Operation is one pipeline stage.
//
// Run must treat st as read-only: operations in the same dependency level run
// concurrently, and their Apply functions are invoked serially once the whole
// level has finished.
type Operation interface {
	Name() string
	DependsOn() []string
	// Required operations abort the request on failure. Optional ones are
	// recorded as degraded and their output is discarded.
	Required() bool
	Skip(st *State) bool
	Run(ctx context.Context, st *State) (Apply, error)
}
