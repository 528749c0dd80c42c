package dispatcher

// DirectEvent is an internally emitted event whose arguments are already
// named. The event router skips argument mapping for it.
type DirectEvent struct {
	Name string
	Args map[string]interface{}
}
