package render

import "fmt"

// RenderFailure is an engine error for one clip. Stderr is the engine's own
// diagnostic output. Nothing in this package retries.
type RenderFailure struct {
	Stage  string
	ClipID string
	Stderr string
	Err    error
}

func (e *RenderFailure) Error() string {
	msg := fmt.Sprintf("render %s failed for clip %s: %v", e.Stage, e.ClipID, e.Err)
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

func (e *RenderFailure) Unwrap() error { return e.Err }
