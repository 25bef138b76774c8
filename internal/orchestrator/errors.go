package orchestrator

import "errors"

// ErrRunTimeout reports that a run did not reach a terminal status within the
// configured deadline. Only the local wait gives up; the remote run may still
// be executing. Callers check it with errors.Is().
var ErrRunTimeout = errors.New("run did not finish before the deadline")
