package reversetransaction

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

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "reverse-transaction"

type Ledger interface {
	ReverseTransaction(ctx context.Context, req ledger.ReverseRequest) (*ledger.ReversalResult, error)
}

type Handler struct {
	config     *Config
	ledger     Ledger
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
	obs        *observability.Observability
}

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

// Handle reverses the transaction named by the job. A storage failure fails
// the job with retries; the guarded status update keeps a retried reversal
// from applying twice.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"retries":            job.GetRetries(),
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

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.record(ctx, started, "failed")
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func ParseInput(variables string) (*Input, error) {
	result := validation.ReversalRequest.Validate([]byte(variables))
	if !result.Valid {
		return nil, apperrors.NewValidationFailedError(result.Summary())
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewValidationFailedError(err.Error())
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.ledger.ReverseTransaction(ctx, ledger.ReverseRequest{
		TransactionID: input.TransactionID,
		Reason:        input.Reason,
	})
	if err != nil {
		return nil, err
	}

	tx := res.Transaction
	return &Output{
		TransactionID:     tx.TransactionID,
		TransactionStatus: string(tx.Status),
		AccountNumber:     tx.AccountNumber,
		Amount:            tx.Amount.StringFixed(2),
		ReversalReason:    res.Reason,
		Narration:         tx.Narration,
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
