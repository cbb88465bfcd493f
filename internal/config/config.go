package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	RoomTTL        time.Duration `mapstructure:"room_ttl"`
	RoomEmptyGrace time.Duration `mapstructure:"room_empty_grace"`

	StunURLs []string `mapstructure:"stun_urls"`
	TurnURLs []string `mapstructure:"turn_urls"`

	Peer PeerConfig `mapstructure:"peer"`
}

// PeerConfig configures the headless peer command.
type PeerConfig struct {
	URL  string `mapstructure:"url"`
	Room string `mapstructure:"room"`
	Name string `mapstructure:"name"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("room_ttl", "2h")
	v.SetDefault("room_empty_grace", "60s")
	v.SetDefault("stun_urls", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	})
	v.SetDefault("turn_urls", []string{})
	v.SetDefault("peer.url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("peer.room", "main")
	v.SetDefault("peer.name", "")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
