package createtransaction

import (
	"context"
	"encoding/json"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/common/metrics"
	"acquisition-ledger/internal/common/observability"
	"acquisition-ledger/internal/common/validation"
	"acquisition-ledger/internal/ledger"
	"acquisition-ledger/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-transaction"

type Ledger interface {
	CreateTransaction(ctx context.Context, req ledger.CreateRequest) (*models.Transaction, error)
}

type Handler struct {
	config     *Config
	ledger     Ledger
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
	obs        *observability.Observability
}

// NewHandler builds the worker. obs may be nil.
func NewHandler(cfg *Config, l Ledger, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     cfg,
		ledger:     l,
		logger:     log,
		errHandler: apperrors.NewErrorHandler(log),
		obs:        obs,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := ParseInput(job.GetVariables())
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			h.record(ctx, started, "completed")
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			return
		}
	}

	code := string(apperrors.Normalize(err).Code)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.record(ctx, started, "failed")
	h.errHandler.HandleJobError(ctx, client, job, err)
}

// ParseInput validates the job variables against the transaction request
// schema before decoding them.
func ParseInput(variables string) (*Input, error) {
	result := validation.TransactionRequest.Validate([]byte(variables))
	if !result.Valid {
		return nil, apperrors.NewValidationFailedError(result.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewValidationFailedError(err.Error())
	}
	return &input, nil
}

// Execute posts the transaction. Business failures come back as coded errors
// that HandleJobError throws as BPMN errors; none of them is retried.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tx, err := h.ledger.CreateTransaction(ctx, ledger.CreateRequest{
		AccountNumber: input.AccountNumber,
		Amount:        input.Amount,
		Narration:     input.Narration,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		TransactionID:     tx.TransactionID,
		TransactionStatus: string(tx.Status),
		AccountNumber:     tx.AccountNumber,
		Amount:            tx.Amount.StringFixed(2),
		CreatedAt:         tx.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":        job.GetKey(),
		"transactionId": output.TransactionID,
	})
}

func (h *Handler) record(ctx context.Context, started time.Time, status string) {
	elapsed := time.Since(started)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	if h.obs != nil {
		h.obs.RecordJobProcessed(ctx, TaskType, status)
		h.obs.RecordJobDuration(ctx, TaskType, elapsed, status)
	}
}
