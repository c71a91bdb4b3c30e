package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace    bool // log every CPU instruction via the standard logger
	LimitFPS bool // hint to the host loop to throttle to hardware rate
}
