package config

// Config contains all application settings
type Config struct {
	BindPort      int    `mapstructure:"PORT" yaml:"port"`
	BindHost      string `mapstructure:"HOST" yaml:"host"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	NATSServerURL string `mapstructure:"NATS_URL" yaml:"nats_url"`

	// PositionUpdateInterval is the background refresh cadence in
	// milliseconds.
	PositionUpdateInterval int `mapstructure:"POSITION_UPDATE_INTERVAL" yaml:"position_update_interval"`

	// DestLat and DestLon are the fallback ETA destination used for
	// devices that carry no destination of their own.
	DestLat float64 `mapstructure:"DEST_LAT" yaml:"dest_lat"`
	DestLon float64 `mapstructure:"DEST_LON" yaml:"dest_lon"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}
