package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/caro/internal/entity"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	ModeSingle = "single"
	ModeHost   = "host"
	ModeJoin   = "join"

	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

type Config struct {
	LogLevel        string        `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	Mode            string        `yaml:"mode" env:"CARO_MODE" env-default:"single"`
	Difficulty      string        `yaml:"difficulty" env:"CARO_DIFFICULTY" env-default:"easy"`
	AutoPlay        bool          `yaml:"auto-play" env:"CARO_AUTO_PLAY" env-default:"false"`
	AIMoveDelay     time.Duration `yaml:"ai-move-delay" env:"CARO_AI_MOVE_DELAY" env-default:"0s"`
	ResumeSessionID string        `yaml:"resume-session-id" env:"CARO_RESUME_SESSION_ID"`
	Transport       Transport     `yaml:"transport"`
	Heartbeat       Heartbeat     `yaml:"heartbeat"`
	Redis           Redis         `yaml:"redis"`
}

type Transport struct {
	Kind         string        `yaml:"kind" env:"CARO_TRANSPORT" env-default:"tcp"`
	ListenAddr   string        `yaml:"listen-addr" env:"CARO_LISTEN_ADDR" env-default:":7878"`
	PeerAddr     string        `yaml:"peer-addr" env:"CARO_PEER_ADDR"`
	DialTimeout  time.Duration `yaml:"dial-timeout" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write-timeout" env-default:"10s"`
}

type Heartbeat struct {
	Interval time.Duration `yaml:"interval" env-default:"5s"`
	Timeout  time.Duration `yaml:"timeout" env-default:"15s"`
}

type Redis struct {
	Enabled     bool          `yaml:"enabled" env:"CARO_REDIS_ENABLED" env-default:"false"`
	Host        string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port        string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	SnapshotTTL time.Duration `yaml:"snapshot-ttl" env-default:"24h"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

// Load - reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FromEnv - configuration without a file: defaults plus environment.
func FromEnv() (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	switch that.Mode {
	case ModeSingle, ModeHost, ModeJoin:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, that.Mode)
	}

	if _, err := entity.ParseDifficulty(that.Difficulty); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch that.Transport.Kind {
	case TransportTCP, TransportWebsocket:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidConfig, that.Transport.Kind)
	}

	if that.Mode == ModeJoin && that.Transport.PeerAddr == "" {
		return fmt.Errorf("%w: join needs transport.peer-addr", ErrInvalidConfig)
	}

	if that.ResumeSessionID != "" && that.Mode != ModeHost {
		return fmt.Errorf("%w: only the host can resume a session", ErrInvalidConfig)
	}

	if that.Heartbeat.Interval > 0 && that.Heartbeat.Timeout > 0 && that.Heartbeat.Timeout <= that.Heartbeat.Interval {
		return fmt.Errorf("%w: heartbeat timeout must be longer than the interval", ErrInvalidConfig)
	}

	return nil
}

func (that *Config) GetDifficulty() entity.Difficulty {
	return entity.Difficulty(that.Difficulty)
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
