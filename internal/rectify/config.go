package rectify

// Config holds configuration for the rectification step.
type Config struct {
	// Trim re-crops the symbol to the tightest box of dark pixels after the
	// finder-based crop.
	Trim bool
	// Fill is the hex colour used for canvas areas uncovered by rotation.
	Fill string
	// DebugDir, if non-empty, receives the rotated image, the crop and an
	// overlay of the finder boxes as PNGs.
	DebugDir string
}

// DefaultConfig returns the default rectification settings.
func DefaultConfig() Config {
	return Config{
		Trim:     true,
		Fill:     "#ffffff",
		DebugDir: "",
	}
}
