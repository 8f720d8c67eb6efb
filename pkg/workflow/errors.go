package workflow

import "errors"

// ErrInvalidState is returned when a lifecycle operation is attempted on an
// execution whose status does not permit it, e.g. resuming an execution that
// is not paused or cancelling one that already finished.
var ErrInvalidState = errors.New("invalid execution state")
