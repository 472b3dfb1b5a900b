package config

import "time"

// StorageConfig selects where parsed datasets are kept
type StorageConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory string `yaml:"directory" validate:"required_if=Backend sqlite"`
	// Usually taken from DATABASE_URL
	PostgresDSN string `yaml:"postgresDSN" validate:"required_if=Backend postgres"`
}

// RoutingConfig holds graph weights and fuzzy matching thresholds
type RoutingConfig struct {
	RideWeight     float64 `yaml:"rideWeight" validate:"gt=0"`
	TransferWeight float64 `yaml:"transferWeight" validate:"gt=0"`
	HighThreshold  float64 `yaml:"highThreshold" validate:"gt=0,lte=1"`
	LowThreshold   float64 `yaml:"lowThreshold" validate:"gte=0,ltefield=HighThreshold"`
	FuzzyCacheSize int     `yaml:"fuzzyCacheSize" validate:"gte=0"`

	// Name normalization tables. Unset selects the built-in ones, an
	// empty table disables that step.
	Substitutions map[string]string `yaml:"substitutions" validate:"dive,keys,required,endkeys"`
	Suffixes      []string          `yaml:"suffixes" validate:"dive,required"`
}

// TDXConfig contains TDX API credentials and paging
type TDXConfig struct {
	BaseURL      string        `yaml:"baseURL" validate:"omitempty,url"`
	TokenURL     string        `yaml:"tokenURL" validate:"omitempty,url"`
	ClientID     string        `yaml:"clientID"`
	ClientSecret string        `yaml:"clientSecret" validate:"required_with=ClientID"`
	PageSize     int           `yaml:"pageSize" validate:"gte=0,lte=5000"`
	FarePageSize int           `yaml:"farePageSize" validate:"gte=0,lte=5000"`
	CacheFile    string        `yaml:"cacheFile"`
	CacheTTL     time.Duration `yaml:"cacheTTL" validate:"gte=0"`
}

// RecommenderConfig contains the metro route recommendation service
// endpoint and credentials. Disabled unless Username is set.
type RecommenderConfig struct {
	Endpoint string        `yaml:"endpoint" validate:"omitempty,url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password" validate:"required_with=Username"`
	CacheTTL time.Duration `yaml:"cacheTTL" validate:"gte=0"`
}

// LostAndFoundConfig points at the lost property feed. It needs no
// credentials and is on unless Disabled.
type LostAndFoundConfig struct {
	URL      string        `yaml:"url" validate:"omitempty,url"`
	CacheTTL time.Duration `yaml:"cacheTTL" validate:"gte=0"`
	Disabled bool          `yaml:"disabled"`
}

// Config is the root configuration structure
type Config struct {
	// Local directory holding dataset files, also the source of
	// aliases.csv and stations_sid_map.json
	DataDir string `yaml:"dataDir"`

	// Directory caching name indexes, one file per dataset. Disabled
	// when empty.
	IndexCache string `yaml:"indexCache"`

	Storage      StorageConfig      `yaml:"storage" validate:"required"`
	Routing      RoutingConfig      `yaml:"routing" validate:"required"`
	TDX          TDXConfig          `yaml:"tdx"`
	Recommender  RecommenderConfig  `yaml:"recommender"`
	LostAndFound LostAndFoundConfig `yaml:"lostAndFound"`
}

func (c *Config) TDXEnabled() bool {
	return c.TDX.ClientID != ""
}

func (c *Config) RecommenderEnabled() bool {
	return c.Recommender.Username != ""
}

func (c *Config) LostAndFoundEnabled() bool {
	return !c.LostAndFound.Disabled
}
