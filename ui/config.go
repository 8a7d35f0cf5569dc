package ui

// Config contains TUI-specific configuration. All fields are populated by
// the CLI layer from the resolved application config.
type Config struct {
	// Path of the markdown file on disk, for live-reload watching.
	Path string

	GlamourStyle    string
	GlamourMaxWidth uint
	GlamourEnabled  bool

	// RewindSeconds is how far one rewind keypress jumps back.
	RewindSeconds float64

	// SpeedStep is the rate change per speed keypress.
	SpeedStep float64
}

func (c Config) withDefaults() Config {
	if c.RewindSeconds <= 0 {
		c.RewindSeconds = 10
	}
	if c.SpeedStep <= 0 {
		c.SpeedStep = 0.25
	}
	return c
}
