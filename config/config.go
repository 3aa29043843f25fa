// Package config loads the server configuration. The matching core
// reads no files or environment variables; everything tunable enters
// through this struct at process start.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Engine struct {
	PoolCapacity    int   `mapstructure:"pool_capacity"`
	PriceLevels     int64 `mapstructure:"price_levels"`
	RingSize        int   `mapstructure:"ring_size"`
	SuppressAccepts bool  `mapstructure:"suppress_accepts"`
	SuppressCancels bool  `mapstructure:"suppress_cancels"`
}

type Gateway struct {
	Addr string `mapstructure:"addr"`
}

type Dashboard struct {
	Addr       string `mapstructure:"addr"`
	IntervalMS int    `mapstructure:"interval_ms"`
	Depth      int    `mapstructure:"depth"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Journal struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type KrakenIngest struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Symbol  string `mapstructure:"symbol"`
	Depth   int    `mapstructure:"depth"`
}

type FeedIngest struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type Ingest struct {
	Kraken KrakenIngest `mapstructure:"kraken"`
	Feed   FeedIngest   `mapstructure:"feed"`
}

type Config struct {
	LogLevel  string    `mapstructure:"log_level"`
	Engine    Engine    `mapstructure:"engine"`
	Gateway   Gateway   `mapstructure:"gateway"`
	Dashboard Dashboard `mapstructure:"dashboard"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Journal   Journal   `mapstructure:"journal"`
	Ingest    Ingest    `mapstructure:"ingest"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("engine.pool_capacity", 1<<20)
	v.SetDefault("engine.price_levels", 1<<25)
	v.SetDefault("engine.ring_size", 1<<20)
	v.SetDefault("gateway.addr", ":9000")
	v.SetDefault("dashboard.addr", ":8080")
	v.SetDefault("dashboard.interval_ms", 50)
	v.SetDefault("dashboard.depth", 10)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "titan.events")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dir", "./journal")
	v.SetDefault("ingest.kraken.url", "wss://ws.kraken.com/v2")
	v.SetDefault("ingest.kraken.symbol", "BTC/USD")
	v.SetDefault("ingest.kraken.depth", 1000)
	v.SetDefault("ingest.feed.group_id", "titan-engine")
}

// Load reads the YAML config at path; an empty path falls back to
// ./config.yaml and, failing that, the defaults alone.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.Engine.PriceLevels%64 != 0 {
		return nil, fmt.Errorf("config: engine.price_levels must be a multiple of 64")
	}
	return &cfg, nil
}
