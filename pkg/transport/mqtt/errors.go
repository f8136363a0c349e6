package mqtt

import "errors"

// ErrConnectTimeout is returned when the broker doesn't accept the
// connection in time.
var ErrConnectTimeout = errors.New("mqtt connect timeout")
