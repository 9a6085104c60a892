package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/commandpost/dispatch-core/models"
)

// Config holds the project config values for both the dispatch service
// and the console client.
type Config struct {
	Server ServerConfig `json:"server"`
	Client ClientConfig `json:"client"`
}

// ServerConfig configures the authoritative dispatch service.
type ServerConfig struct {
	Port         string `json:"port"`
	BaseURL      string `json:"base_url"`
	MongoURI     string `json:"mongo_uri"`
	DatabaseName string `json:"database_name"`
	JWTSecret    string `json:"jwt_secret"`
}

// ClientConfig configures a dispatcher console.
type ClientConfig struct {
	ServerURL          string `json:"server_url"`
	UnitScope          string `json:"unit_scope"`
	QueuePath          string `json:"queue_path"`
	Token              string `json:"token"`
	RefreshIntervalSec int    `json:"refresh_interval_sec"`
}

// RefreshInterval returns the poll interval as a duration.
func (c ClientConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// SetDefaults applies sane defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.DatabaseName == "" {
		c.DatabaseName = "dispatch"
	}
}

// SetDefaults applies sane defaults.
func (c *ClientConfig) SetDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080"
	}
	if c.QueuePath == "" {
		c.QueuePath = "dispatch-queue.db"
	}
	if c.RefreshIntervalSec == 0 {
		c.RefreshIntervalSec = 30
	}
}

// Validate checks mandatory fields.
func (c ServerConfig) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("server.mongo_uri is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// Load reads the config file at path (yaml or json by extension),
// applies DC_-prefixed environment overrides, and sets up the global
// zap logger.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, DC_SERVER__PORT -> server.port
	if err := k.Load(env.Provider("DC_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dc_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Client.SetDefaults()

	InitLogger()
	return &cfg, nil
}

// InitLogger sets up the zap logger and replaces the global logger.
func InitLogger() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{Message: message, Error: errStr}})
	w.Write(b)
}
