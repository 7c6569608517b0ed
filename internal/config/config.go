package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Theme describe una entrada del catálogo de themes que se sincroniza
// en la base de cada tenant durante el provisioning.
type Theme struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		MySQL struct {
			// DSN del control plane (go-sql-driver). El database del DSN
			// es la base del control plane; las conexiones por tenant se
			// derivan de este DSN cambiando solo el database.
			DSN             string `yaml:"dsn"`
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"mysql"`
	} `yaml:"storage"`

	Tenancy struct {
		// Base del control plane (catálogo de tenants + superadmin).
		ControlDatabase string `yaml:"control_database"`
		// Base compartida previa a multi-tenancy; el guard la sigue aceptando.
		LegacyDatabase string `yaml:"legacy_database"`
		// Base template que se clona al provisionar.
		TemplateDatabase string `yaml:"template_database"`
		// location_id al que se asocia el fixture Cashier.
		DefaultLocationID int64 `yaml:"default_location_id"`
	} `yaml:"tenancy"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		TTL   string `yaml:"ttl"`  // TTL de lookups tenant-by-domain
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Superadmin struct {
		// Secret HS256 para la cookie de sesión. Obligatorio fuera de dev.
		SessionSecret string `yaml:"session_secret"`
		CookieName    string `yaml:"cookie_name"`
		SessionTTL    string `yaml:"session_ttl"`
	} `yaml:"superadmin"`

	Themes struct {
		// Theme que se activa por defecto al provisionar un tenant.
		Default string  `yaml:"default"`
		Catalog []Theme `yaml:"catalog"`
	} `yaml:"themes"`

	Notify struct {
		// Aviso por email al operador cuando un tenant queda
		// provisioned_with_warnings o el reconcile detecta orphans.
		Enabled bool   `yaml:"enabled"`
		To      string `yaml:"to"`
		SMTP    struct {
			Host string `yaml:"host"`
			Port int    `yaml:"port"`
			From string `yaml:"from"`
			User string `yaml:"user"`
			Pass string `yaml:"pass"`
		} `yaml:"smtp"`
	} `yaml:"notify"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// Default retorna una configuración con defaults y overrides de entorno,
// sin leer config.yaml. Útil para tooling y tests.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	c.applyEnvOverrides()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.MySQL.MaxOpenConns == 0 {
		c.Storage.MySQL.MaxOpenConns = 15
	}
	if c.Storage.MySQL.MaxIdleConns == 0 {
		c.Storage.MySQL.MaxIdleConns = 3
	}
	if c.Storage.MySQL.ConnMaxLifetime == "" {
		c.Storage.MySQL.ConnMaxLifetime = "30m"
	}
	if c.Tenancy.ControlDatabase == "" {
		c.Tenancy.ControlDatabase = "mesadine"
	}
	if c.Tenancy.LegacyDatabase == "" {
		c.Tenancy.LegacyDatabase = "paymydine"
	}
	if c.Tenancy.TemplateDatabase == "" {
		c.Tenancy.TemplateDatabase = "newtenantdb"
	}
	if c.Tenancy.DefaultLocationID == 0 {
		c.Tenancy.DefaultLocationID = 1
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "30s"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Superadmin.CookieName == "" {
		c.Superadmin.CookieName = "mesadine_admin"
	}
	if c.Superadmin.SessionTTL == "" {
		c.Superadmin.SessionTTL = "12h"
	}
	if c.Themes.Default == "" {
		c.Themes.Default = "frontend-theme"
	}
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("STORAGE_MYSQL_DSN"); ok {
		c.Storage.MySQL.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_MYSQL_MAX_OPEN_CONNS"); ok {
		c.Storage.MySQL.MaxOpenConns = v
	}
	if v, ok := getEnvInt("STORAGE_MYSQL_MAX_IDLE_CONNS"); ok {
		c.Storage.MySQL.MaxIdleConns = v
	}
	if v, ok := getEnvStr("TENANCY_CONTROL_DATABASE"); ok {
		c.Tenancy.ControlDatabase = v
	}
	if v, ok := getEnvStr("TENANCY_LEGACY_DATABASE"); ok {
		c.Tenancy.LegacyDatabase = v
	}
	if v, ok := getEnvStr("TENANCY_TEMPLATE_DATABASE"); ok {
		c.Tenancy.TemplateDatabase = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("SUPERADMIN_SESSION_SECRET"); ok {
		c.Superadmin.SessionSecret = v
	}
	if v, ok := getEnvBool("NOTIFY_ENABLED"); ok {
		c.Notify.Enabled = v
	}
	if v, ok := getEnvStr("NOTIFY_TO"); ok {
		c.Notify.To = v
	}
}

// Validate verifica los valores críticos de configuración.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.MySQL.DSN) == "" {
		return fmt.Errorf("config: storage.mysql.dsn is required")
	}
	if c.Tenancy.TemplateDatabase == c.Tenancy.ControlDatabase {
		return fmt.Errorf("config: template database must differ from control database")
	}
	if strings.ToLower(c.App.Env) == "prod" && strings.TrimSpace(c.Superadmin.SessionSecret) == "" {
		return fmt.Errorf("config: superadmin.session_secret is required in prod")
	}
	return nil
}

// CacheTTL parsea cache.ttl con fallback a 30s.
func (c *Config) CacheTTL() time.Duration {
	return parseDur(c.Cache.TTL, 30*time.Second)
}

// SessionTTL parsea superadmin.session_ttl con fallback a 12h.
func (c *Config) SessionTTL() time.Duration {
	return parseDur(c.Superadmin.SessionTTL, 12*time.Hour)
}

func parseDur(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
