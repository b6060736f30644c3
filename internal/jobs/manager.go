package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Manager owns the scheduler for periodic maintenance jobs. Specs include a seconds field.
type Manager struct {
	engine *cron.Cron
	log    *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		engine: cron.New(cron.WithSeconds()),
		log:    log,
	}
}

func (m *Manager) Register(spec string, job cron.Job) error {
	if _, err := m.engine.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job)); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

func (m *Manager) Start() {
	m.log.Info("cron scheduler started", zap.Int("jobs", len(m.engine.Entries())))
	m.engine.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (m *Manager) Stop() {
	<-m.engine.Stop().Done()
	m.log.Info("cron scheduler stopped")
}
