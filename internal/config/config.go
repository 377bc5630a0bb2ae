package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type ScraperConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Pages     int           `mapstructure:"pages"`
	PageDelay time.Duration `mapstructure:"page_delay"`
	Interval  time.Duration `mapstructure:"interval"`
	UserAgent string        `mapstructure:"user_agent"`
}

type NotificationConfig struct {
	SweepSpec  string `mapstructure:"sweep_spec"`
	DigestSpec string `mapstructure:"digest_spec"`
}

type EmailConfig struct {
	From     string `mapstructure:"from"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Config struct {
	DatabaseURL   string             `mapstructure:"database_url"`
	ServerPort    string             `mapstructure:"server_port"`
	JWTSecret     string             `mapstructure:"jwt_secret"`
	AllowedOrigin string             `mapstructure:"allowed_origin"`
	Email         EmailConfig        `mapstructure:"email"`
	Scraper       ScraperConfig      `mapstructure:"scraper"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.AllowedOrigin == "" {
		config.AllowedOrigin = "http://localhost:3000"
	}

	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}

	if config.Scraper.BaseURL == "" {
		config.Scraper.BaseURL = "https://calendar.unt.edu"
	}
	if config.Scraper.Pages == 0 {
		config.Scraper.Pages = 3
	}
	if config.Scraper.PageDelay == 0 {
		config.Scraper.PageDelay = time.Second
	}
	if config.Scraper.Interval == 0 {
		config.Scraper.Interval = time.Hour
	}
	if config.Scraper.UserAgent == "" {
		config.Scraper.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	if config.Notifications.SweepSpec == "" {
		config.Notifications.SweepSpec = "* * * * *"
	}
	if config.Notifications.DigestSpec == "" {
		config.Notifications.DigestSpec = "0 0 * * *"
	}

	return &config
}
