package api

import (
	"encoding/json"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	httpx "acquisition-ledger/internal/common/http"
	"acquisition-ledger/internal/common/validation"
	"acquisition-ledger/internal/ledger"
	"acquisition-ledger/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type transactionRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Narration     string          `json:"narration"`
}

type reversalRequest struct {
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
}

type transactionResponse struct {
	Status        string      `json:"status"`
	TransactionID string      `json:"transactionId"`
	AccountNumber string      `json:"accountNumber"`
	Amount        json.Number `json:"amount"`
	Narration     string      `json:"narration"`
	Timestamp     time.Time   `json:"timestamp"`
}

type reversalResponse struct {
	Status         string      `json:"status"`
	TransactionID  string      `json:"transactionId"`
	AccountNumber  string      `json:"accountNumber"`
	Amount         json.Number `json:"amount"`
	ReversalReason string      `json:"reversalReason"`
	Timestamp      time.Time   `json:"timestamp"`
}

// transactionView is a stored record as returned by the query endpoints.
type transactionView struct {
	ID            int64       `json:"id"`
	TransactionID string      `json:"transactionId"`
	AccountNumber string      `json:"accountNumber"`
	Amount        json.Number `json:"amount"`
	Narration     string      `json:"narration"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func newTransactionView(tx models.Transaction) transactionView {
	return transactionView{
		ID:            tx.ID,
		TransactionID: tx.TransactionID,
		AccountNumber: tx.AccountNumber,
		Amount:        money(tx.Amount),
		Narration:     tx.Narration,
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt,
	}
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (s *Server) createTransaction(c *fiber.Ctx) error {
	var req transactionRequest
	if err := decode(c, validation.TransactionRequest, &req); err != nil {
		return err
	}

	tx, err := s.deps.Ledger.CreateTransaction(c.UserContext(), ledger.CreateRequest{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Narration:     req.Narration,
	})
	if err != nil {
		return httpx.Error(c, err, "Transaction processing failed")
	}

	return httpx.OK(c, transactionResponse{
		Status:        httpx.StatusSuccess,
		TransactionID: tx.TransactionID,
		AccountNumber: tx.AccountNumber,
		Amount:        money(tx.Amount),
		Narration:     tx.Narration,
		Timestamp:     tx.CreatedAt,
	})
}

func (s *Server) reverseTransaction(c *fiber.Ctx) error {
	var req reversalRequest
	if err := decode(c, validation.ReversalRequest, &req); err != nil {
		return err
	}

	res, err := s.deps.Ledger.ReverseTransaction(c.UserContext(), ledger.ReverseRequest{
		TransactionID: req.TransactionID,
		Reason:        req.Reason,
	})
	if err != nil {
		return httpx.Error(c, err, "Transaction reversal failed")
	}

	return httpx.OK(c, reversalResponse{
		Status:         httpx.StatusSuccess,
		TransactionID:  res.Transaction.TransactionID,
		AccountNumber:  res.Transaction.AccountNumber,
		Amount:         money(res.Transaction.Amount),
		ReversalReason: res.Reason,
		Timestamp:      res.Transaction.CreatedAt,
	})
}

func (s *Server) transactionHistory(c *fiber.Ctx) error {
	accountNumber := c.Params("accountNumber")

	txs, err := s.deps.Ledger.History(c.UserContext(), accountNumber)
	if err != nil {
		return httpx.Failed(c, fiber.StatusInternalServerError, "Failed to retrieve transaction history")
	}

	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx))
	}
	return httpx.OK(c, fiber.Map{
		"status":        httpx.StatusSuccess,
		"accountNumber": accountNumber,
		"transactions":  views,
	})
}

func (s *Server) getTransaction(c *fiber.Ctx) error {
	tx, err := s.deps.Ledger.GetTransaction(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		return httpx.Error(c, err, "Failed to retrieve transaction",
			map[apperrors.ErrorCode]int{apperrors.ErrCodeTransactionNotFound: fiber.StatusNotFound})
	}
	return httpx.OK(c, fiber.Map{
		"status":      httpx.StatusSuccess,
		"transaction": newTransactionView(*tx),
	})
}

// decode validates the raw body against schema and unmarshals it into dst.
// The returned error is a 400 fiber.Error rendered by httpx.ErrorHandler.
func decode(c *fiber.Ctx, schema *validation.Schema, dst any) error {
	result := schema.Validate(c.Body())
	if !result.Valid {
		return fiber.NewError(fiber.StatusBadRequest, "Request validation failed: "+result.Summary())
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Request validation failed: "+err.Error())
	}
	return nil
}
