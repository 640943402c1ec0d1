package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseURL         string        `env:"DATABASE_URL,required"`
	QuizTitle           string        `env:"QUIZ_TITLE" envDefault:"Quiz Night"`
	DefaultTimeLimitSec int           `env:"DEFAULT_TIME_LIMIT_SEC" envDefault:"30"`
	TickInterval        time.Duration `env:"TICK_INTERVAL" envDefault:"250ms"`
	ShuffleQuestions    bool          `env:"SHUFFLE_QUESTIONS" envDefault:"false"`
	ShuffleChoices      bool          `env:"SHUFFLE_CHOICES" envDefault:"false"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
