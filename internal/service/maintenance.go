package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/livesub/internal/config"
	"github.com/MimeLyc/livesub/internal/llm"
	"github.com/MimeLyc/livesub/internal/session"
	"github.com/MimeLyc/livesub/internal/translator"
	"github.com/MimeLyc/livesub/pkg/icron"
	"github.com/MimeLyc/livesub/pkg/log"
)

// BuildCapability creates the LLM translation backend described by cfg. It
// returns nil when cfg is incomplete or rejected by the client.
func BuildCapability(cfg config.LLMConfig) translator.Capability {
	if !cfg.Enabled() {
		return nil
	}
	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.APIKey,
		APIURL:      cfg.APIURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		AppName:     cfg.AppName,
	})
	if err != nil {
		logError(WrapError(err, ErrCapabilityUnavailable, "failed to create LLM client"))
		return nil
	}
	log.Info("Translation backend: %s at %s", client.Model(), cfg.APIURL)
	return translator.NewLLMCapability(client)
}

// Maintenance runs the periodic sweep of idle sessions and applies runtime
// settings changes to the running components.
type Maintenance struct {
	registry *session.Registry
	adapter  *translator.Adapter
	cron     *cron.Cron

	mu       sync.Mutex
	cfg      config.Config
	cronExpr string
	entryID  cron.EntryID
	ctx      context.Context
	sweeps   singleflight.Group
}

func NewMaintenance(
	cfg config.Config,
	registry *session.Registry,
	adapter *translator.Adapter,
	cronEngine *cron.Cron,
) *Maintenance {
	return &Maintenance{
		cfg:      cfg,
		cronExpr: cfg.Session.SweepCron,
		registry: registry,
		adapter:  adapter,
		cron:     cronEngine,
	}
}

func (m *Maintenance) ttl() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.cfg.Session.TTLHours) * time.Hour
}

// Schedule registers the sweep with the cron engine.
func (m *Maintenance) Schedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	return m.scheduleLocked()
}

func (m *Maintenance) scheduleLocked() error {
	ctx := m.ctx
	id, err := m.cron.AddFunc(m.cronExpr, func() {
		if _, err := m.Sweep(ctx); err != nil {
			logError(WrapError(err, ErrStorage, "session sweep failed"))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", m.cronExpr, err)
	}
	m.entryID = id

	if info, err := icron.GetTriggerInfo(m.cronExpr, time.Now()); err == nil {
		log.Info("Session sweep scheduled (%s), next run in %s", m.cronExpr, info.TimeUntilNext.Round(time.Second))
	}
	return nil
}

// Sweep drops sessions idle for longer than the configured TTL. Overlapping
// calls share one run.
func (m *Maintenance) Sweep(ctx context.Context) (int64, error) {
	ttl := m.ttl()
	v, err, _ := m.sweeps.Do("sweep", func() (any, error) {
		n, err := m.registry.Sweep(ctx, ttl)
		if err != nil {
			return int64(0), err
		}
		if n > 0 {
			log.Info("Swept %d idle tab sessions", n)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ApplyRuntimeSettings points translation at the new backend, changes the
// default language for new tabs and reschedules the sweep.
func (m *Maintenance) ApplyRuntimeSettings(next config.RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	tag, err := language.Parse(next.DefaultTargetLanguage)
	if err != nil {
		return fmt.Errorf("invalid default_target_language: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	llmChanged := m.cfg.LLM.APIURL != next.LLMAPIURL ||
		m.cfg.LLM.APIKey != next.LLMAPIKey ||
		m.cfg.LLM.Model != next.LLMModel
	m.cfg.LLM.APIURL = next.LLMAPIURL
	m.cfg.LLM.APIKey = next.LLMAPIKey
	m.cfg.LLM.Model = next.LLMModel
	m.cfg.Translate.DefaultTargetLanguage = tag
	m.cfg.Session.SweepCron = next.SweepCron

	if llmChanged && m.adapter != nil {
		m.adapter.SetCapability(BuildCapability(m.cfg.LLM))
	}
	if m.registry != nil {
		m.registry.SetDefaultLanguage(tag.String())
	}

	expr := strings.TrimSpace(next.SweepCron)
	if expr == m.cronExpr || m.ctx == nil {
		m.cronExpr = expr
		return nil
	}
	m.cron.Remove(m.entryID)
	m.cronExpr = expr
	return m.scheduleLocked()
}
