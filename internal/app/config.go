package app

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

// Duration reads Go duration strings such as "10s" from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Server struct {
		Port           string   `toml:"port" env:"PORT"`
		BearerToken    string   `toml:"bearer_token" env:"BEARER_TOKEN" validate:"required"`
		AllowedOrigins []string `toml:"allowed_origins"`
	} `toml:"server"`

	Database struct {
		DSN           string `toml:"dsn" env:"DATABASE_URL" validate:"required"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Zoho struct {
		AccountsURL  string   `toml:"accounts_url" env:"ZOHO_ACCOUNTS_URL" validate:"required,url"`
		APIURL       string   `toml:"api_url" env:"ZOHO_API_URL" validate:"required,url"`
		Timeout      Duration `toml:"timeout"`
		RefreshToken string   `toml:"refresh_token" env:"ZOHO_REFRESH_TOKEN" validate:"required"`
		ClientID     string   `toml:"client_id" env:"ZOHO_CLIENT_ID" validate:"required"`
		ClientSecret string   `toml:"client_secret" env:"ZOHO_CLIENT_SECRET" validate:"required"`
	} `toml:"zoho"`

	Cache struct {
		RedisURL string   `toml:"redis_url" env:"REDIS_URL"`
		TTL      Duration `toml:"ttl"`
	} `toml:"cache"`
}

// ConfigurationError lists the settings that are missing or malformed.
// It is only ever returned at startup.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = ":3000"
	config.Server.AllowedOrigins = []string{"*"}
	config.Zoho.AccountsURL = "https://accounts.zoho.com"
	config.Zoho.APIURL = "https://www.zohoapis.com/crm/v2"
	config.Zoho.Timeout = Duration{10 * time.Second}
	config.Cache.TTL = Duration{5 * time.Minute}
	return &config
}

// LoadConfig reads the optional TOML file at path, then lets environment
// variables (and a .env file, if present) override it.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug.Println("No .env file found, using environment variables")
	}

	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info.Printf("Config file %s not found, using defaults and environment", path)
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("error reading config file %s\n> Error: %w", path, err)
			}
		}
	}

	applyEnv(config)

	if !strings.Contains(config.Server.Port, ":") {
		config.Server.Port = ":" + config.Server.Port
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnv(config *Config) {
	overrides := map[string]*string{
		"PORT":               &config.Server.Port,
		"BEARER_TOKEN":       &config.Server.BearerToken,
		"DATABASE_URL":       &config.Database.DSN,
		"ZOHO_ACCOUNTS_URL":  &config.Zoho.AccountsURL,
		"ZOHO_API_URL":       &config.Zoho.APIURL,
		"ZOHO_REFRESH_TOKEN": &config.Zoho.RefreshToken,
		"ZOHO_CLIENT_ID":     &config.Zoho.ClientID,
		"ZOHO_CLIENT_SECRET": &config.Zoho.ClientSecret,
		"REDIS_URL":          &config.Cache.RedisURL,
	}
	for name, dst := range overrides {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func validateConfig(config *Config) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})

	cfgErr := &ConfigurationError{}

	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				cfgErr.Missing = append(cfgErr.Missing, fe.Field())
			} else {
				cfgErr.Invalid = append(cfgErr.Invalid, fe.Field())
			}
		}
	}

	// a zero timeout on http.Client means no timeout at all
	if config.Zoho.Timeout.Duration <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "zoho.timeout")
	}

	if len(cfgErr.Missing) == 0 && len(cfgErr.Invalid) == 0 {
		return nil
	}
	return cfgErr
}
