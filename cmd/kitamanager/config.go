package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/osvaldomontes/kitamanager"
)

const envPrefix = "KITAMANAGER"

// serverConfig is the file/environment view of the server settings.
type serverConfig struct {
	Addr              string        `mapstructure:"addr"`
	SessionSecret     string        `mapstructure:"session_secret"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	APIBaseURL        string        `mapstructure:"api_base_url"`
	APITimeout        time.Duration `mapstructure:"api_timeout"`
	TemplateOwner     string        `mapstructure:"template_owner"`
	TemplateRepo      string        `mapstructure:"template_repo"`
	ProvisionAttempts int           `mapstructure:"provision_attempts"`
	ProvisionInterval time.Duration `mapstructure:"provision_interval"`
	AuthRate          time.Duration `mapstructure:"auth_rate"`
	AuthBurst         int           `mapstructure:"auth_burst"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"addr":               ":5000",
	"session_secret":     "",
	"cookie_secure":      false,
	"api_base_url":       "https://api.github.com",
	"api_timeout":        "15s",
	"template_owner":     "daradege",
	"template_repo":      "kita-farsi",
	"provision_attempts": 10,
	"provision_interval": "1s",
	"auth_rate":          "12s",
	"auth_burst":         5,
	"log_level":          "info",
	"log_format":         "json",
}

// loadConfig merges defaults, the optional config file at path and
// KITAMANAGER_* environment variables, in increasing precedence.
func loadConfig(path string) (serverConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return serverConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return serverConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// siteConfig converts to the server's SiteConfig. auth_rate is the interval
// at which one more token submission is allowed.
func (c serverConfig) siteConfig() kitamanager.SiteConfig {
	sc := kitamanager.SiteConfig{
		Addr:              c.Addr,
		SessionSecret:     c.SessionSecret,
		CookieSecure:      c.CookieSecure,
		APIBaseURL:        c.APIBaseURL,
		APITimeout:        c.APITimeout,
		TemplateOwner:     c.TemplateOwner,
		TemplateRepo:      c.TemplateRepo,
		ProvisionAttempts: c.ProvisionAttempts,
		ProvisionInterval: c.ProvisionInterval,
		AuthBurst:         c.AuthBurst,
	}
	if c.AuthRate > 0 {
		sc.AuthRate = rate.Every(c.AuthRate)
	}
	return sc
}
