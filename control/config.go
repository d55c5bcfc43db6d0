// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Application configuration. Values come from a JSON file when one is given
// and from WSGATE_* environment variables otherwise.

package control

import (
	"encoding/json"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/momentics/wsgate/server"
)

// Config holds the settings of a wsgate endpoint.
type Config struct {
	Debug bool `envconfig:"debug" json:"debug"`

	Addr string `envconfig:"addr" default:":8080" json:"addr"`
	Path string `envconfig:"path" default:"/" json:"path"`

	Protocols []string `envconfig:"protocols" json:"protocols"`

	// PingInterval is in seconds, 0 disables keepalive.
	PingInterval int `envconfig:"ping" json:"ping"`
	// CloseGrace is in milliseconds.
	CloseGrace int `envconfig:"closegrace" json:"closegrace"`

	MaxFrameSize   int64 `envconfig:"maxframe" default:"1048576" json:"maxframe"`
	MaxMessageSize int64 `envconfig:"maxmessage" default:"33554432" json:"maxmessage"`
	FragmentSize   int   `envconfig:"fragment" json:"fragment"`
}

// Load reads the configuration from file, or from the environment when file
// is empty.
func Load(file string) (*Config, error) {
	if file == "" {
		return fromEnv()
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}
	defer f.Close()
	return fromReader(f)
}

func fromEnv() (*Config, error) {
	cfg := Config{}
	if err := envconfig.Process("wsgate", &cfg); err != nil {
		return nil, errors.Wrap(err, "read config from environment")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read config file.")
	}

	cfg := Config{}
	if err := setDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "Failed to parse JSON.")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// only for config from file; envconfig applies defaults itself
func setDefaults(c *Config) error {
	val := reflect.ValueOf(c).Elem()
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		def := typ.Field(i).Tag.Get("default")
		if def == "" || !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(def)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(def, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "default for %s", typ.Field(i).Name)
			}
			field.SetInt(n)
		case reflect.Bool:
			b, err := strconv.ParseBool(def)
			if err != nil {
				return errors.Wrapf(err, "default for %s", typ.Field(i).Name)
			}
			field.SetBool(b)
		case reflect.Slice:
			field.Set(reflect.ValueOf(strings.Split(def, ",")))
		default:
			return errors.Errorf("unsupported default for %s", typ.Field(i).Name)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case !strings.HasPrefix(c.Path, "/"):
		return errors.Errorf("path %q must start with /", c.Path)
	case c.PingInterval < 0:
		return errors.Errorf("ping interval %d is negative", c.PingInterval)
	case c.CloseGrace < 0:
		return errors.Errorf("close grace %d is negative", c.CloseGrace)
	case c.MaxFrameSize <= 0 || c.MaxMessageSize <= 0:
		return errors.New("frame and message limits must be positive")
	case c.MaxFrameSize > c.MaxMessageSize:
		return errors.Errorf("frame limit %d exceeds message limit %d", c.MaxFrameSize, c.MaxMessageSize)
	case c.FragmentSize < 0:
		return errors.Errorf("fragment size %d is negative", c.FragmentSize)
	}
	return nil
}

// ServerOptions converts c into per-connection options.
func (c *Config) ServerOptions(log *zap.Logger) []server.Option {
	return []server.Option{
		server.WithProtocols(c.Protocols...),
		server.WithPingInterval(time.Duration(c.PingInterval) * time.Second),
		server.WithCloseGracePeriod(time.Duration(c.CloseGrace) * time.Millisecond),
		server.WithMaxFrameSize(c.MaxFrameSize),
		server.WithMaxMessageSize(c.MaxMessageSize),
		server.WithFragmentSize(c.FragmentSize),
		server.WithLogger(log),
	}
}
