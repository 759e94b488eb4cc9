// Package manager wires the subsystems together behind the surface the
// HTTP layer consumes: model catalog and downloads, tiered engine
// resolution, and the background processing queue.
package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mailmind/internal/catalog"
	"mailmind/internal/common/sysinfo"
	"mailmind/internal/download"
	"mailmind/internal/queue"
	"mailmind/internal/resolver"
	"mailmind/pkg/types"
)

// Config carries the subsystem handles. All fields are required.
type Config struct {
	Downloads *download.Manager
	Resolver  *resolver.Resolver
	Queue     *queue.Queue
	Logger    zerolog.Logger
}

type Manager struct {
	downloads *download.Manager
	resolver  *resolver.Resolver
	queue     *queue.Queue
	log       zerolog.Logger
	started   time.Time

	// baseCtx scopes background downloads to the process lifetime.
	baseCtx context.Context
}

func New(cfg Config) *Manager {
	return &Manager{
		downloads: cfg.Downloads,
		resolver:  cfg.Resolver,
		queue:     cfg.Queue,
		log:       cfg.Logger,
		started:   time.Now(),
		baseCtx:   context.Background(),
	}
}

// SetBaseContext scopes background work to ctx; cancelling it stops
// in-flight downloads on shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	m.baseCtx = ctx
}

func (m *Manager) ListModels() []types.ModelEntry {
	return m.downloads.AvailableModels()
}

// StartDownload validates id and kicks off the transfer in the background.
// Progress is observable through ListModels; completion re-resolves the
// engine tier.
func (m *Manager) StartDownload(id string) error {
	if _, ok := catalog.ByID(id); !ok {
		return download.ErrModelNotFound(id)
	}
	go func() {
		if err := m.downloads.Download(m.baseCtx, id, nil); err != nil {
			m.log.Warn().Err(err).Str("model", id).Msg("background download failed")
			return
		}
		m.resolver.Invalidate()
	}()
	return nil
}

func (m *Manager) CancelDownload(id string) {
	m.downloads.Cancel(id)
}

// DeleteModel removes the model file and drops the memoized engine tier,
// since the deleted file may be the one backing it.
func (m *Manager) DeleteModel(id string) error {
	if _, ok := catalog.ByID(id); !ok {
		return download.ErrModelNotFound(id)
	}
	if err := m.downloads.Delete(id); err != nil {
		return err
	}
	m.resolver.Invalidate()
	return nil
}

func (m *Manager) Generate(ctx context.Context, prompt string, maxTokens int, onToken func(string) error) {
	m.resolver.Resolve().Generate(ctx, prompt, maxTokens, onToken)
}

func (m *Manager) Classify(ctx context.Context, text string, categories []string) (string, error) {
	return m.resolver.Resolve().Classify(ctx, text, categories)
}

func (m *Manager) Enqueue(msgs []types.Message) int {
	return m.queue.Enqueue(msgs)
}

func (m *Manager) CancelQueue() {
	m.queue.Cancel()
}

func (m *Manager) Status() types.StatusResponse {
	eng, tier := m.resolver.ResolveTier()
	storage, err := m.downloads.StorageUsage()
	if err != nil {
		m.log.Debug().Err(err).Msg("storage usage probe failed")
	}
	return types.StatusResponse{
		EngineAvailable:  eng.Available(),
		EngineTier:       tier,
		RecommendedModel: catalog.Recommended(sysinfo.TotalRAM()),
		StorageBytes:     storage,
		Queue:            m.queue.State(),
		UptimeSeconds:    int64(time.Since(m.started).Seconds()),
	}
}

// Ready reports whether the service can answer requests. The engine tiers
// degrade rather than fail, so readiness only requires the models
// directory to be usable.
func (m *Manager) Ready() bool {
	_, err := m.downloads.StorageUsage()
	return err == nil
}
