package api

import (
	"strconv"
	"strings"

	"acquisition-ledger/internal/application"
	apperrors "acquisition-ledger/internal/common/errors"
	httpx "acquisition-ledger/internal/common/http"
	"acquisition-ledger/internal/common/validation"

	"github.com/gofiber/fiber/v2"
)

type submitApplicationRequest struct {
	BankID             int64   `json:"bankId"`
	BranchID           int64   `json:"branchId"`
	BankName           string  `json:"bankName"`
	BranchName         string  `json:"branchName"`
	AccountName        string  `json:"accountName"`
	AccountNumber      string  `json:"accountNumber"`
	ProofOfBankAccount *string `json:"proofOfBankAccount"`
	Status             string  `json:"status"`
}

func (s *Server) submitApplication(c *fiber.Ctx) error {
	var req submitApplicationRequest
	if err := decode(c, validation.ApplicationSubmitRequest, &req); err != nil {
		return err
	}

	app, err := s.deps.Applications.Submit(c.UserContext(), application.SubmitRequest{
		BankID:             req.BankID,
		BranchID:           req.BranchID,
		BankName:           req.BankName,
		BranchName:         req.BranchName,
		AccountName:        req.AccountName,
		AccountNumber:      req.AccountNumber,
		ProofOfBankAccount: req.ProofOfBankAccount,
		Status:             req.Status,
	})
	if err != nil {
		if stdErr, ok := apperrors.AsStandard(err); ok && stdErr.Code == apperrors.ErrCodeInternal {
			return httpx.Failed(c, fiber.StatusInternalServerError, "Application submission failed: "+stdErr.Details)
		}
		return httpx.Error(c, err, "Application submission failed")
	}

	label := app.Status.Label()
	return httpx.OK(c, fiber.Map{
		"status":            httpx.StatusSuccess,
		"message":           "Application " + strings.ToLower(label) + " successfully",
		"applicationId":     app.ID,
		"accountNumber":     app.AccountNumber,
		"applicationStatus": label,
		"submissionDate":    app.CreatedAt,
	})
}

func (s *Server) listApplications(c *fiber.Ctx) error {
	apps, err := s.deps.Applications.List(c.UserContext())
	if err != nil {
		return httpx.Failed(c, fiber.StatusInternalServerError, "Failed to retrieve applications")
	}
	return httpx.OK(c, fiber.Map{
		"status":       httpx.StatusSuccess,
		"applications": apps,
		"count":        len(apps),
	})
}

func (s *Server) getApplication(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return httpx.Failed(c, fiber.StatusBadRequest, "Invalid application id")
	}

	app, err := s.deps.Applications.Get(c.UserContext(), id)
	if err != nil {
		return httpx.Error(c, err, "Failed to retrieve application")
	}
	return httpx.OK(c, fiber.Map{
		"status":      httpx.StatusSuccess,
		"application": app,
	})
}

func (s *Server) getApplicationByAccount(c *fiber.Ctx) error {
	accountNumber := c.Params("accountNumber")

	app, err := s.deps.Applications.GetByAccountNumber(c.UserContext(), accountNumber)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeApplicationNotFound) {
			return httpx.Failed(c, fiber.StatusNotFound, "Application not found for account number: "+accountNumber)
		}
		return httpx.Error(c, err, "Failed to retrieve application")
	}
	return httpx.OK(c, fiber.Map{
		"status":      httpx.StatusSuccess,
		"application": app,
	})
}
