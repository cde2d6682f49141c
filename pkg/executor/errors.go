package executor

import "errors"

// ErrUnsupportedCommand indicates an action record names a command string
// the executor has no dispatch rule for. The compiler is permissive about
// unrecognized command strings (kept for forward-compatibility); the
// executor is not — it only issues commands it understands.
var ErrUnsupportedCommand = errors.New("executor: unsupported command")

// ErrInvalidAction indicates an action record's fields failed the
// executor's re-validation pass, even though the compiler already
// accepted it — defends against a tampered or hand-edited compiled blob.
var ErrInvalidAction = errors.New("executor: invalid action record")
