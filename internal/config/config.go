package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Redis      Redis   `yaml:"redis"`
	Session    Session `yaml:"session"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB   int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Session struct {
	WriteRetry WriteRetry `yaml:"write-retry"`
	// CheckersNoMoveLoss ends a checkers game when the side to move is blocked.
	CheckersNoMoveLoss bool `yaml:"checkers-no-move-loss" env:"CHECKERS_NO_MOVE_LOSS" env-default:"false"`
}

type WriteRetry struct {
	InitialInterval time.Duration `yaml:"initial-interval" env:"WRITE_RETRY_INITIAL_INTERVAL" env-default:"100ms"`
	MaxElapsed      time.Duration `yaml:"max-elapsed" env:"WRITE_RETRY_MAX_ELAPSED" env-default:"5s"`
}

// MustLoad - load all configurations in config.yml file, after an optional .env next to the process.
func MustLoad(path string) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("unable to load .env file: %w", err))
	}

	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
