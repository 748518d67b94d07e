package main

import (
	"context"
	"fmt"

	"github.com/aretw0/voiceloop"
	"github.com/aretw0/voiceloop/internal/config"
	"github.com/aretw0/voiceloop/pkg/adapters/file"
	"github.com/aretw0/voiceloop/pkg/adapters/memory"
	"github.com/aretw0/voiceloop/pkg/adapters/ollama"
	"github.com/aretw0/voiceloop/pkg/adapters/openai"
	"github.com/aretw0/voiceloop/pkg/adapters/redis"
	"github.com/aretw0/voiceloop/pkg/catalog"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/aretw0/voiceloop/pkg/persistence/middleware"
	"github.com/aretw0/voiceloop/pkg/ports"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/aretw0/voiceloop/pkg/task"
	"github.com/spf13/cobra"
)

// storage is the configured snapshot store and, for redis, its lock.
type storage struct {
	store  ports.StateStore
	locker ports.DistributedLocker
	close  func() error
}

func openStore(ctx context.Context) (*storage, error) {
	s := &storage{close: func() error { return nil }}

	switch cfg.Store.Kind {
	case config.StoreFile:
		dir := cfg.Store.Dir
		if dir == "" {
			dir = file.DefaultDir
		}
		s.store = file.New(dir)
	case config.StoreRedis:
		opts := []redis.Option{redis.WithTTL(cfg.Store.Redis.TTL)}
		if cfg.Store.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Store.Redis.Prefix))
		}
		rs := redis.New(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB, opts...)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Store.Redis.Addr, err)
		}
		s.store = rs
		s.locker = redis.NewLocker(rs.Client(), rs.Prefix())
		s.close = rs.Close
	default:
		s.store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if cfg.Store.Redact {
		mws = append(mws, middleware.NewRedactionMiddleware(cfg.Store.RedactPatterns))
	}
	if cfg.Store.EncryptionKey != "" {
		key, err := cfg.Store.Key()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	s.store = middleware.Chain(s.store, mws...)

	logger.Debug("snapshot store ready", "kind", cfg.Store.Kind, "redact", cfg.Store.Redact, "sealed", cfg.Store.EncryptionKey != "")
	return s, nil
}

func (s *storage) manager() *session.Manager {
	opts := []session.Option{session.WithLogger(logger)}
	if s.locker != nil {
		opts = append(opts, session.WithLocker(s.locker), session.WithLockTTL(cfg.Store.LockTTL))
	}
	return session.NewManager(s.store, opts...)
}

func newProvider(cmd *cobra.Command) (ports.CompletionProvider, error) {
	model, _ := cmd.Flags().GetString("model")

	switch cfg.Backend {
	case config.BackendOpenAI:
		if model == "" {
			model = cfg.OpenAI.Model
		}
		if cfg.OpenAI.APIKey == "" && cfg.OpenAI.BaseURL == "" {
			return nil, fmt.Errorf("openai backend needs OPENAI_API_KEY or openai.base_url")
		}
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL,
			openai.WithModel(model),
			openai.WithLogger(logger),
		), nil
	default:
		if model == "" {
			model = cfg.Ollama.Model
		}
		p, err := ollama.FromEnvironment(ollama.WithModel(model), ollama.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		return p, nil
	}
}

func newEngine(cmd *cobra.Command, hooks domain.LifecycleHooks) (*voiceloop.Engine, error) {
	menu, err := catalog.Load(cfg.Dialogue.CatalogFile)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(cmd)
	if err != nil {
		return nil, err
	}
	return voiceloop.New(
		voiceloop.WithVariant(domain.Variant(cfg.Dialogue.Variant)),
		voiceloop.WithCatalog(menu),
		voiceloop.WithMaxSilences(cfg.Dialogue.MaxSilences),
		voiceloop.WithRecovery(cfg.Dialogue.Recovery),
		voiceloop.WithGreeting(cfg.Dialogue.Greeting),
		voiceloop.WithSpeechSettings(cfg.Speech),
		voiceloop.WithCompletion(provider,
			task.WithPromptTemperature(cfg.Completion.Temperature),
			task.WithStream(cfg.Completion.Stream),
		),
		voiceloop.WithLifecycleHooks(hooks),
		voiceloop.WithLogger(logger),
	)
}
