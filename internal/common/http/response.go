// Package http holds the fiber response envelope and middleware shared by
// the API handlers.
package http

import (
	"strings"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/common/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// FailedResponse is the body of every non-2xx API response.
type FailedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func OK(c *fiber.Ctx, body any) error {
	return c.Status(fiber.StatusOK).JSON(body)
}

func Failed(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(FailedResponse{Status: StatusFailed, Message: message})
}

// Error writes err as a FAILED response. Coded errors take their status from
// apperrors.HTTPStatus unless overrides names one for the code; anything else
// is a 500 carrying fallback.
func Error(c *fiber.Ctx, err error, fallback string, overrides ...map[apperrors.ErrorCode]int) error {
	stdErr, ok := apperrors.AsStandard(err)
	if !ok {
		return Failed(c, fiber.StatusInternalServerError, fallback)
	}

	status := apperrors.HTTPStatus(stdErr.Code)
	for _, o := range overrides {
		if s, found := o[stdErr.Code]; found {
			status = s
		}
	}

	message := stdErr.Message
	if stdErr.Code == apperrors.ErrCodeValidationFailed && stdErr.Details != "" {
		message += ": " + stdErr.Details
	}
	return Failed(c, status, message)
}

// WithCORS allows the configured front-end origins.
func WithCORS(origins []string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	})
}

// WithRequestMetrics records count and latency per matched route.
func WithRequestMetrics(obs *observability.Observability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		obs.RecordRequest(c.UserContext(), c.Method(), c.Route().Path, status, time.Since(started))
		return err
	}
}

// WithRequestLogging logs one line per request at Debug, or Warn for 5xx.
func WithRequestLogging(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		fields := map[string]interface{}{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"durationMs": time.Since(started).Milliseconds(),
		}
		if status >= fiber.StatusInternalServerError {
			log.Warn("request failed", fields)
		} else {
			log.Debug("request served", fields)
		}
		return err
	}
}

// ErrorHandler renders errors that escape a handler, including fiber's own
// 404 and 405, in the FAILED envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return Failed(c, fe.Code, fe.Message)
	}
	return Failed(c, fiber.StatusInternalServerError, "Internal server error")
}
