// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"acquisition-ledger/internal/common/config"
	"acquisition-ledger/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Registration binds a task type to its handler.
type Registration struct {
	TaskType string
	Handler  worker.JobHandler
}

// WorkerManager opens one Zeebe job worker per enabled registration.
type WorkerManager struct {
	client  zbc.Client
	cfg     *config.Config
	logger  logger.Logger
	workers map[string]worker.JobWorker
}

func NewWorkerManager(client zbc.Client, cfg *config.Config, log logger.Logger) *WorkerManager {
	return &WorkerManager{
		client:  client,
		cfg:     cfg,
		logger:  log.WithFields(map[string]interface{}{"component": "worker-manager"}),
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens workers for every registration whose config is enabled and
// returns the task types that were started.
func (m *WorkerManager) Start(regs ...Registration) []string {
	var started []string
	for _, reg := range regs {
		wc := config.GetWorkerConfig(m.cfg, reg.TaskType)
		if !wc.Enabled {
			m.logger.Info("worker disabled by configuration", map[string]interface{}{"taskType": reg.TaskType})
			continue
		}

		timeout := config.GetDuration(wc.Timeout)
		m.workers[reg.TaskType] = m.client.NewJobWorker().
			JobType(reg.TaskType).
			Handler(reg.Handler).
			MaxJobsActive(wc.MaxJobsActive).
			Timeout(timeout).
			PollInterval(time.Second).
			Name(m.cfg.App.Name).
			Open()

		m.logger.Info("worker started", map[string]interface{}{
			"taskType":      reg.TaskType,
			"maxJobsActive": wc.MaxJobsActive,
			"timeout":       timeout.String(),
		})
		started = append(started, reg.TaskType)
	}
	return started
}

// Stop closes every open worker and waits for in-flight jobs.
func (m *WorkerManager) Stop() {
	for taskType, w := range m.workers {
		w.Close()
		w.AwaitClose()
		m.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
}
