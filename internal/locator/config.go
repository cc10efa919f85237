package locator

import "fmt"

// Config holds the thresholds of the finder-pattern search.
type Config struct {
	VersionEstimate        int     // version assumed when estimating the minimum visible surface
	SquareTolerance        float64 // max relative difference between sprite width and height
	DensityThreshold       float64 // min foreground density of a finder pattern sprite
	SizeThreshold          float64 // max relative difference of pixel counts within a size group
	DistanceThreshold      float64 // max relative difference of the two legs of a triple
	OrthogonalityThreshold float64 // max deviation from a right angle, relative to 90 degrees
	ColocationThreshold    float64 // max inner/outer centroid offset, relative to the leg length
}

// DefaultConfig returns the thresholds tuned for photographed symbols.
func DefaultConfig() Config {
	return Config{
		VersionEstimate:        10,
		SquareTolerance:        0.13,
		DensityThreshold:       0.25,
		SizeThreshold:          0.18,
		DistanceThreshold:      0.1,
		OrthogonalityThreshold: 0.13,
		ColocationThreshold:    0.04,
	}
}

// Validate checks that every threshold is usable.
func (c Config) Validate() error {
	if c.VersionEstimate < 1 || c.VersionEstimate > 40 {
		return fmt.Errorf("version estimate must be in [1, 40], got %d", c.VersionEstimate)
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"square tolerance", c.SquareTolerance},
		{"density threshold", c.DensityThreshold},
		{"size threshold", c.SizeThreshold},
		{"distance threshold", c.DistanceThreshold},
		{"orthogonality threshold", c.OrthogonalityThreshold},
		{"colocation threshold", c.ColocationThreshold},
	}
	for _, ch := range checks {
		if ch.v < 0 || ch.v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %.3f", ch.name, ch.v)
		}
	}
	return nil
}
