//nolint:lll
package config

// Config represents the complete application configuration.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Component configurations
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan" json:"scan"`
	Locator LocatorConfig `mapstructure:"locator" yaml:"locator" json:"locator"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch" json:"batch"`
	PDF     PDFConfig     `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
}

// ScanConfig holds settings shared by every scan.
type ScanConfig struct {
	VersionEstimate int     `mapstructure:"version_estimate" yaml:"version_estimate" json:"version_estimate"`
	Brightness      float64 `mapstructure:"brightness" yaml:"brightness" json:"brightness"`
	MaxImageSide    int     `mapstructure:"max_image_side" yaml:"max_image_side" json:"max_image_side"`
	Trim            bool    `mapstructure:"trim" yaml:"trim" json:"trim"`
	Fallback        bool    `mapstructure:"fallback" yaml:"fallback" json:"fallback"`
	DebugDir        string  `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
	Workers         int     `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// LocatorConfig holds the finder-pattern thresholds.
type LocatorConfig struct {
	SquareTolerance        float64 `mapstructure:"square_tolerance" yaml:"square_tolerance" json:"square_tolerance"`
	DensityThreshold       float64 `mapstructure:"density_threshold" yaml:"density_threshold" json:"density_threshold"`
	SizeThreshold          float64 `mapstructure:"size_threshold" yaml:"size_threshold" json:"size_threshold"`
	DistanceThreshold      float64 `mapstructure:"distance_threshold" yaml:"distance_threshold" json:"distance_threshold"`
	OrthogonalityThreshold float64 `mapstructure:"orthogonality_threshold" yaml:"orthogonality_threshold" json:"orthogonality_threshold"`
	ColocationThreshold    float64 `mapstructure:"colocation_threshold" yaml:"colocation_threshold" json:"colocation_threshold"`
}

// OutputConfig holds output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int64           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	MaxBatchItems   int             `mapstructure:"max_batch_items" yaml:"max_batch_items" json:"max_batch_items"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig holds batch processing settings. ContinueOnError keeps the exit
// status zero when some inputs fail; FailFast stops scanning at the first one.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	IncludePatterns []string `mapstructure:"include" yaml:"include,omitempty" json:"include"`
	ExcludePatterns []string `mapstructure:"exclude" yaml:"exclude,omitempty" json:"exclude"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	FailFast        bool     `mapstructure:"fail_fast" yaml:"fail_fast" json:"fail_fast"`
}

// PDFConfig holds PDF processing settings.
type PDFConfig struct {
	Workers       int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Pages         string `mapstructure:"pages" yaml:"pages" json:"pages"`
	UserPassword  string `mapstructure:"user_password" yaml:"user_password" json:"-"`
	OwnerPassword string `mapstructure:"owner_password" yaml:"owner_password" json:"-"`
}
