package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"vwapbook/orderbook"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Book struct {
		Side    string `yaml:"side"`
		Brokers int    `yaml:"brokers"`
		Symbol  string `yaml:"symbol"`
	} `yaml:"book"`
	Engine struct {
		Weight   string `yaml:"weight"`
		Validate bool   `yaml:"validate"`
	} `yaml:"engine"`
	Feed struct {
		Path      string `yaml:"path"`
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"feed"`
	Store struct {
		Path string `yaml:"path"`
		Sync bool   `yaml:"sync"`
	} `yaml:"store"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Output struct {
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"output"`
}

func Default() Config {
	var c Config
	c.Book.Side = "bids"
	c.Book.Brokers = orderbook.DefaultBrokers
	c.Book.Symbol = "MSFT"
	c.Engine.Weight = "0.25"
	c.Feed.QueueSize = 1024
	c.Logging.Level = "info"
	return c
}

// Load builds the config. Priority: ENV > .env file > YAML file > defaults.
// An empty path falls back to VWAP_CONFIG.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		path = os.Getenv("VWAP_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// optional; a missing .env is not an error
	_ = godotenv.Load()

	if err := c.applyEnv(); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("VWAP_BOOK_SIDE"); v != "" {
		c.Book.Side = v
	}
	if v := os.Getenv("VWAP_BROKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: VWAP_BROKERS=%q", ErrInvalid, v)
		}
		c.Book.Brokers = n
	}
	if v := os.Getenv("VWAP_SYMBOL"); v != "" {
		c.Book.Symbol = v
	}
	if v := os.Getenv("VWAP_WEIGHT"); v != "" {
		c.Engine.Weight = v
	}
	if v := os.Getenv("VWAP_VALIDATE"); v != "" {
		c.Engine.Validate = isTrue(v)
	}
	if v := os.Getenv("VWAP_FEED"); v != "" {
		c.Feed.Path = v
	}
	if v := os.Getenv("VWAP_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: VWAP_QUEUE_SIZE=%q", ErrInvalid, v)
		}
		c.Feed.QueueSize = n
	}
	if v := os.Getenv("VWAP_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("VWAP_DB_SYNC"); v != "" {
		c.Store.Sync = isTrue(v)
	}
	if v := os.Getenv("VWAP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VWAP_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("VWAP_SNAPSHOT_PATH"); v != "" {
		c.Output.SnapshotPath = v
	}
	return nil
}

func isTrue(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}

func (c Config) Validate() error {
	if !orderbook.TrackMode(c.Book.Side).Valid() {
		return fmt.Errorf("%w: book side %q, want bids, asks or both", ErrInvalid, c.Book.Side)
	}
	if c.Book.Brokers < 1 {
		return fmt.Errorf("%w: brokers %d", ErrInvalid, c.Book.Brokers)
	}
	if c.Book.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalid)
	}
	if _, err := c.Weight(); err != nil {
		return err
	}
	if c.Feed.QueueSize < 1 {
		return fmt.Errorf("%w: queue size %d", ErrInvalid, c.Feed.QueueSize)
	}
	return nil
}

// Weight parses the engine weight; it must lie in (0, 1].
func (c Config) Weight() (decimal.Decimal, error) {
	w, err := decimal.NewFromString(c.Engine.Weight)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: weight %q: %v", ErrInvalid, c.Engine.Weight, err)
	}
	if !w.IsPositive() || w.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: weight %s outside (0, 1]", ErrInvalid, w)
	}
	return w, nil
}
