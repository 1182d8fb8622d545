package receivers

import (
	"github.com/tjstebbing/conductor"

	vault "github.com/misterlabs/agentvault/pkg"
)

// Conductor is the surface of the instance returned by conductor.New that
// receivers use; the concrete type is unexported upstream.
type Conductor interface {
	Service(name string, service conductor.Service)
}

// Sets up standard receivers.
func SetUpReceivers(cond Conductor, bus *vault.MessageBus, conf vault.Config) {
	// Set up configured loggers
	SetupLoggers(cond, bus, conf)

	// Set up configured Callbacks
	SetupCallbacks(cond, bus, conf)
}

// resolveTypes maps config strings onto EventTypes, dropping anything
// unknown with a warning.
func resolveTypes(name string, wanted []string, warn func(format string, args ...any)) []vault.EventType {
	types := []vault.EventType{}
	for _, t := range wanted {
		match := false
		for _, x := range vault.EVENT_TYPES {
			if t == x.Type() {
				match = true
				types = append(types, x)
			}
		}
		if !match {
			warn("%s: ignoring invalid message type: %s", name, t)
		}
	}
	return types
}
