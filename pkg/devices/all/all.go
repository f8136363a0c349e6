// Package all registers every device kind.
package all

import (
	// device kinds
	_ "github.com/robotalks/arena.go/pkg/devices/feeder"
	_ "github.com/robotalks/arena.go/pkg/devices/line"
	_ "github.com/robotalks/arena.go/pkg/devices/mux"
	_ "github.com/robotalks/arena.go/pkg/devices/thermo"
	_ "github.com/robotalks/arena.go/pkg/devices/trigger"
)
