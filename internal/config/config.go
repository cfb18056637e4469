package config

import "time"

// SchoolSeed provisions one school at startup. The password is hashed before
// it reaches the database.
type SchoolSeed struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Name     string `mapstructure:"name" yaml:"name"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	ChatWindow        int           `mapstructure:"chat_window" yaml:"chat_window"`

	// Fees overrides the default fee table per category key.
	Fees map[string]int `mapstructure:"fees" yaml:"fees,omitempty"`

	// Schools are provisioned at startup; existing records keep their counts.
	Schools []SchoolSeed `mapstructure:"schools" yaml:"schools,omitempty"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "kurspanel.db",
		LogLevel:          "info",
		JWTSecret:         "change-me",
		JWTIssuer:         "kurspanel",
		JWTAudience:       "kurspanel-api",
		TokenTTL:          24 * time.Hour,
		ChatWindow:        100,
	}
}
