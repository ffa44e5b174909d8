package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/openrouter"
)

type Role string

const (
	RolePlanner     Role = "planner"
	RoleSynthesizer Role = "synthesizer"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	PlannerModel           string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	SynthesizerModel       string  `envconfig:"SYNTHESIZER_MODEL" split_words:"true"`
	PlannerTemperature     float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"0.3"`
	SynthesizerTemperature float32 `envconfig:"SYNTHESIZER_TEMPERATURE" split_words:"true" default:"0.7"`

	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" split_words:"true" default:"5"`
	BreakerTimeout     time.Duration `envconfig:"BREAKER_TIMEOUT" split_words:"true" default:"30s"`
	BreakerInterval    time.Duration `envconfig:"BREAKER_INTERVAL" split_words:"true" default:"60s"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxCompletionToken <= 0 {
		return fmt.Errorf("%w: max completion token must be positive", contractx.ErrValidation)
	}
	return nil
}

// TemperatureFor returns the sampling temperature a role asks for per call.
// A negative override falls back to the shared default.
func (c Config) TemperatureFor(role Role) float32 {
	temp := c.Temperature
	switch role {
	case RolePlanner:
		if c.PlannerTemperature >= 0 {
			temp = c.PlannerTemperature
		}
	case RoleSynthesizer:
		if c.SynthesizerTemperature >= 0 {
			temp = c.SynthesizerTemperature
		}
	}
	return temp
}

func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)

	switch role {
	case RolePlanner:
		if v := strings.TrimSpace(c.PlannerModel); v != "" {
			modelName = v
		}
	case RoleSynthesizer:
		if v := strings.TrimSpace(c.SynthesizerModel); v != "" {
			modelName = v
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.TemperatureFor(role),
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

func (c Config) Breaker(role Role) BreakerConfig {
	return BreakerConfig{
		Name:        "llm:" + string(role),
		MaxFailures: c.BreakerMaxFailures,
		Timeout:     c.BreakerTimeout,
		Interval:    c.BreakerInterval,
	}
}
