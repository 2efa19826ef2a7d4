// Package config loads settings from the environment, optionally seeded from
// a .env file
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Prefix of all environment variables
const Prefix = "FFEDIT_"

// DotEnvFile is loaded if it exists, already set variables are not overridden
const DotEnvFile = ".env"

type Config struct {
	FFmpegPath  string `env:"FFMPEG_PATH"  envDefault:"ffmpeg"  validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe" validate:"required"`

	Codec      string `env:"CODEC"       envDefault:"mpeg4"   validate:"required"`
	PixFmt     string `env:"PIX_FMT"     envDefault:"yuv420p" validate:"required"`
	DefaultFPS int    `env:"DEFAULT_FPS" envDefault:"30"      validate:"min=1"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"warn" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
}

var validate = validator.New()

// Load reads dotEnvPath if it exists and then parses the process environment
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath != "" {
		if err := godotenv.Load(dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dotEnvPath, err)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses config from an explicit environment, used by tests
func FromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
