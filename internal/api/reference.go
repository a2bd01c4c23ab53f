package api

import (
	"strconv"

	apperrors "acquisition-ledger/internal/common/errors"
	httpx "acquisition-ledger/internal/common/http"

	"github.com/gofiber/fiber/v2"
)

// Reference lookups answer a missing bank with 404 rather than the 400 used
// when a submission names one.
var referenceNotFound = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeBankNotFound:   fiber.StatusNotFound,
	apperrors.ErrCodeBranchNotFound: fiber.StatusNotFound,
}

func (s *Server) listBanks(c *fiber.Ctx) error {
	banks, err := s.deps.Reference.ListBanks(c.UserContext())
	if err != nil {
		return httpx.Error(c, err, "Failed to retrieve banks")
	}
	return httpx.OK(c, banks)
}

func (s *Server) getBank(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return httpx.Failed(c, fiber.StatusBadRequest, "Invalid bank id")
	}
	bank, err := s.deps.Reference.GetBank(c.UserContext(), id)
	if err != nil {
		return httpx.Error(c, err, "Failed to retrieve bank", referenceNotFound)
	}
	return httpx.OK(c, bank)
}

func (s *Server) listBranches(c *fiber.Ctx) error {
	bankID, err := strconv.ParseInt(c.Query("bank_id"), 10, 64)
	if err != nil {
		return httpx.Failed(c, fiber.StatusBadRequest, "bank_id query parameter is required")
	}
	branches, err := s.deps.Reference.ListBranches(c.UserContext(), bankID)
	if err != nil {
		return httpx.Error(c, err, "Failed to retrieve branches", referenceNotFound)
	}
	return httpx.OK(c, branches)
}

func (s *Server) getBranch(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return httpx.Failed(c, fiber.StatusBadRequest, "Invalid branch id")
	}
	branch, err := s.deps.Reference.GetBranch(c.UserContext(), id)
	if err != nil {
		return httpx.Error(c, err, "Failed to retrieve branch", referenceNotFound)
	}
	return httpx.OK(c, branch)
}
