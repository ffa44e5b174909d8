package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	apix "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/api"
	executorx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/agents/executor"
	orchestratorx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/agents/orchestrator"
	plannerx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/agents/planner"
	synthesizerx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/agents/synthesizer"
	catalogx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/contract"
	llmx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/llm"
	notifyx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/notify"
	statex "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/state"
	toolx "github.com/tanpawarit/Chative-Tool-Orchestrator/agent/tool"
	configx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/config"
	_ "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/qstash"
	tracerx "github.com/tanpawarit/Chative-Tool-Orchestrator/pkg/tracer"
)

type AppConfig struct {
	Port            string        `envconfig:"PORT" default:"3001"`
	StateBackend    string        `envconfig:"STATE_BACKEND" default:"memory"`
	LLMBackend      string        `envconfig:"LLM_BACKEND" default:"eino"`
	LeaveAnnualDays int           `envconfig:"LEAVE_ANNUAL_DAYS" default:"12"`
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	RateLimitPerMin int           `envconfig:"RATE_LIMIT_PER_MIN" default:"120"`
	RateLimitBurst  int           `envconfig:"RATE_LIMIT_BURST" default:"20"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c AppConfig) Validate() error {
	switch c.StateBackend {
	case "memory", "upstash", "postgres":
	default:
		return fmt.Errorf("%w: unsupported state backend %q", contractx.ErrValidation, c.StateBackend)
	}
	switch c.LLMBackend {
	case "eino", "openai":
	default:
		return fmt.Errorf("%w: unsupported llm backend %q", contractx.ErrValidation, c.LLMBackend)
	}
	if c.LeaveAnnualDays < 0 {
		return fmt.Errorf("%w: leave annual days must not be negative", contractx.ErrValidation)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("tool orchestrator stopped")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")

	shutdownTracer, err := tracerx.Setup(ctx, *configx.MustNew[tracerx.Config]("TRACING"))
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	store, closeStore, err := newStateStore(ctx, appCfg.StateBackend)
	if err != nil {
		return err
	}
	defer closeStore()

	manager, err := statex.NewManager(store, statex.WithAnnualLeave(appCfg.LeaveAnnualDays))
	if err != nil {
		return err
	}
	movies, err := catalogx.Load()
	if err != nil {
		return err
	}
	registry, err := toolx.NewRegistry(movies, manager)
	if err != nil {
		return err
	}

	plannerLLM, err := newCompleter(ctx, appCfg.LLMBackend, *llmCfg, llmx.RolePlanner)
	if err != nil {
		return err
	}
	synthLLM, err := newCompleter(ctx, appCfg.LLMBackend, *llmCfg, llmx.RoleSynthesizer)
	if err != nil {
		return err
	}

	planner, err := plannerx.New(ctx, plannerLLM, registry.Definitions(), plannerx.Config{
		Temperature: llmCfg.TemperatureFor(llmx.RolePlanner),
	})
	if err != nil {
		return err
	}
	executor, err := executorx.New(registry)
	if err != nil {
		return err
	}
	synth, err := synthesizerx.New(ctx, synthLLM, synthesizerx.Config{
		Temperature: llmCfg.TemperatureFor(llmx.RoleSynthesizer),
	})
	if err != nil {
		return err
	}

	var orchOpts []orchestratorx.Option
	if qstashCfg := configx.MustNew[qstashx.Config]("QSTASH"); qstashCfg.Enabled() {
		notifier, err := notifyx.NewQStashNotifier(qstashx.MustNew(*qstashCfg), qstashCfg.Destination)
		if err != nil {
			return err
		}
		orchOpts = append(orchOpts, orchestratorx.WithNotifier(notifier))
		log.Info().Str("destination", qstashCfg.Destination).Msg("execution notifications enabled")
	}

	orch, err := orchestratorx.New(planner, executor, synth, orchOpts...)
	if err != nil {
		return err
	}

	handler, err := apix.NewHandler(orch, registry,
		apix.WithMaxBodyBytes(appCfg.MaxBodyBytes),
		apix.WithSessionResetter(manager),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: ":" + strings.TrimPrefix(appCfg.Port, ":"),
		Handler: apix.NewRouter(ctx, handler, apix.RouterConfig{
			RateLimit: apix.RateLimitConfig{
				RequestsPerMin: appCfg.RateLimitPerMin,
				BurstSize:      appCfg.RateLimitBurst,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("state_backend", appCfg.StateBackend).
			Str("llm_backend", appCfg.LLMBackend).
			Msg("tool orchestrator listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStateStore(ctx context.Context, backend string) (statex.Store, func(), error) {
	noop := func() {}
	switch backend {
	case "upstash":
		cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		store, err := statex.NewUpstashRedisStore(*cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("create upstash store: %w", err)
		}
		return store, noop, nil
	case "postgres":
		cfg := configx.MustNew[statex.PostgresConfig]("POSTGRES")
		store, err := statex.NewPostgresStore(ctx, *cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("create postgres store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("postgres close failed")
			}
		}, nil
	default:
		return statex.NewMemoryStore(), noop, nil
	}
}

// newCompleter builds the completion client for one role and puts it behind
// a circuit breaker.
func newCompleter(ctx context.Context, backend string, cfg llmx.Config, role llmx.Role) (contractx.Completer, error) {
	orCfg := cfg.OpenRouterFor(role)

	var inner contractx.Completer
	switch backend {
	case "openai":
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, errors.New("failed to initialize openrouter client")
		}
		c, err := llmx.NewOpenAICompleter(client, orCfg.Model, cfg.MaxCompletionToken, orCfg.Temperature)
		if err != nil {
			return nil, err
		}
		inner = c
	default:
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		c, err := llmx.NewChatModelCompleter(chatModel)
		if err != nil {
			return nil, err
		}
		inner = c
	}

	return llmx.NewCircuitBreakerCompleter(inner, cfg.Breaker(role))
}
