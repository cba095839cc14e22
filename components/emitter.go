package components

// EmitterLink ties an actor to its engine registration.
type EmitterLink struct {
	Name       string // emitter name in the config
	Index      int    // index into the config's emitter list
	Handle     uint32 // engine handle while registered
	Registered bool
}
