// Package config loads urlkeep settings from defaults, an optional YAML
// file and URLKEEP_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/fwojciec/urlkeep"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. URLKEEP_FETCH_TIMEOUT.
const EnvPrefix = "URLKEEP"

type (
	Config struct {
		DB         string
		Fetch      Fetch
		Reconcile  Reconcile
		Server     Server
		Extractors Extractors
		Log        Log
	}

	Fetch struct {
		Timeout      time.Duration
		MaxRedirects int
		UserAgent    string
		MaxBodyBytes int64
		RatePerHost  float64 // requests per second per domain, 0 = unlimited
		Render       bool    // use a headless browser

		// RenderMaxPages recycles the browser after this many rendered
		// pages, 0 = never.
		RenderMaxPages int
	}
	Reconcile struct {
		Concurrency      int
		Lease            time.Duration // upper bound on one import
		RetainFailed     bool
		RetainDuplicates bool
		Sweep            string // cron spec, empty = disabled
	}
	Server struct {
		Addr string
	}
	Extractors struct {
		Rules   string // path to a YAML rules file
		Article bool
	}
	Log struct {
		Level  string
		Format string // text or json
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "urlkeep.db")
	v.SetDefault("fetch.timeout", "5s")
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.user_agent", "")
	v.SetDefault("fetch.max_body_bytes", 10<<20)
	v.SetDefault("fetch.rate_per_host", 0)
	v.SetDefault("fetch.render", false)
	v.SetDefault("fetch.render_max_pages", 50)
	v.SetDefault("reconcile.concurrency", 8)
	v.SetDefault("reconcile.lease", "2m")
	v.SetDefault("reconcile.retain_failed", true)
	v.SetDefault("reconcile.retain_duplicates", true)
	v.SetDefault("reconcile.sweep", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("extractors.rules", "")
	v.SetDefault("extractors.article", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. path names a YAML file; when empty the
// URLKEEP_CONFIG variable is consulted, and no file at all is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, urlkeep.WrapError(urlkeep.ENOTFOUND, err, "config file %s not found", path)
			}
			return nil, urlkeep.WrapError(urlkeep.EINVALID, err, "failed to read config %s", path)
		}
	}

	cfg := &Config{
		DB: v.GetString("db"),
		Fetch: Fetch{
			Timeout:      v.GetDuration("fetch.timeout"),
			MaxRedirects: v.GetInt("fetch.max_redirects"),
			UserAgent:    v.GetString("fetch.user_agent"),
			MaxBodyBytes: v.GetInt64("fetch.max_body_bytes"),
			RatePerHost:  v.GetFloat64("fetch.rate_per_host"),
			Render:       v.GetBool("fetch.render"),

			RenderMaxPages: v.GetInt("fetch.render_max_pages"),
		},
		Reconcile: Reconcile{
			Concurrency:      v.GetInt("reconcile.concurrency"),
			Lease:            v.GetDuration("reconcile.lease"),
			RetainFailed:     v.GetBool("reconcile.retain_failed"),
			RetainDuplicates: v.GetBool("reconcile.retain_duplicates"),
			Sweep:            v.GetString("reconcile.sweep"),
		},
		Server: Server{
			Addr: v.GetString("server.addr"),
		},
		Extractors: Extractors{
			Rules:   v.GetString("extractors.rules"),
			Article: v.GetBool("extractors.article"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error if any setting is out of range.
func (c *Config) Validate() error {
	switch {
	case c.DB == "":
		return urlkeep.Errorf(urlkeep.EINVALID, "db path required")
	case c.Fetch.Timeout <= 0:
		return urlkeep.Errorf(urlkeep.EINVALID, "fetch.timeout must be positive")
	case c.Fetch.MaxRedirects < 0:
		return urlkeep.Errorf(urlkeep.EINVALID, "fetch.max_redirects must not be negative")
	case c.Fetch.MaxBodyBytes <= 0:
		return urlkeep.Errorf(urlkeep.EINVALID, "fetch.max_body_bytes must be positive")
	case c.Fetch.RatePerHost < 0:
		return urlkeep.Errorf(urlkeep.EINVALID, "fetch.rate_per_host must not be negative")
	case c.Fetch.RenderMaxPages < 0:
		return urlkeep.Errorf(urlkeep.EINVALID, "fetch.render_max_pages must not be negative")
	case c.Reconcile.Concurrency <= 0:
		return urlkeep.Errorf(urlkeep.EINVALID, "reconcile.concurrency must be positive")
	case c.Reconcile.Lease <= c.Fetch.Timeout:
		return urlkeep.Errorf(urlkeep.EINVALID, "reconcile.lease must exceed fetch.timeout")
	case c.Log.Format != "text" && c.Log.Format != "json":
		return urlkeep.Errorf(urlkeep.EINVALID, "log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
