package core

import "errors"

// Error taxonomy shared by engines, mappers and the compositor.
// Callers wrap these with context and match them with errors.Is.
var (
	// ErrConfiguration reports an invalid setting, e.g. an unassigned
	// shading model or a zero-sized texture request. The operation is
	// skipped and the component keeps its previous state.
	ErrConfiguration = errors.New("configuration error")

	// ErrResourceAllocation reports a failed buffer or texture allocation.
	// It is fatal to the engine instance that hit it.
	ErrResourceAllocation = errors.New("resource allocation failure")

	// ErrInputMismatch reports an object type a mapper or engine cannot
	// consume, e.g. a table handed to MarchingCubes.
	ErrInputMismatch = errors.New("input mismatch")
)
