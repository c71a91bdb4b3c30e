package ui

// Config contains window and input related settings for the ebiten shell.
type Config struct {
	Title   string // window title
	Scale   int    // integer upscaling factor
	ROMsDir string // ROM directory name; set by Defaults, not read by the shell
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.ROMsDir == "" {
		c.ROMsDir = "roms"
	}
}
