package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ============================================================================
// ERROR CODES
// ============================================================================

type ErrorCode string

const (
	// Ledger
	ErrCodeAccountNotFound     ErrorCode = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountNotEligible  ErrorCode = "ACCOUNT_NOT_ELIGIBLE"
	ErrCodeTransactionNotFound ErrorCode = "TRANSACTION_NOT_FOUND"
	ErrCodeAlreadyReversed     ErrorCode = "ALREADY_REVERSED"
	ErrCodeNotReversible       ErrorCode = "NOT_REVERSIBLE"
	ErrCodeProcessingFailed    ErrorCode = "PROCESSING_FAILED"

	// Applications and reference data
	ErrCodeDuplicateAccountNumber ErrorCode = "DUPLICATE_ACCOUNT_NUMBER"
	ErrCodeApplicationNotFound    ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeBankNotFound           ErrorCode = "BANK_NOT_FOUND"
	ErrCodeBranchNotFound         ErrorCode = "BRANCH_NOT_FOUND"
	ErrCodeInvalidBranch          ErrorCode = "INVALID_BRANCH"

	// Generic
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// ============================================================================
// STANDARD ERROR
// ============================================================================

type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying storage or transport error, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code so sentinel comparisons work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

func NewAccountNotFoundError(accountNumber string) *StandardError {
	return newError(ErrCodeAccountNotFound, "Account number not found",
		fmt.Sprintf("accountNumber: %s", accountNumber), false, nil)
}

func NewAccountNotEligibleError(accountNumber, status string) *StandardError {
	return newError(ErrCodeAccountNotEligible, "Account not approved for transactions",
		fmt.Sprintf("accountNumber: %s, status: %s", accountNumber, status), false, nil)
}

func NewTransactionNotFoundError(transactionID string) *StandardError {
	return newError(ErrCodeTransactionNotFound, "Transaction not found",
		fmt.Sprintf("transactionId: %s", transactionID), false, nil)
}

func NewAlreadyReversedError(transactionID string) *StandardError {
	return newError(ErrCodeAlreadyReversed, "Transaction already reversed",
		fmt.Sprintf("transactionId: %s", transactionID), false, nil)
}

func NewNotReversibleError(transactionID, status string) *StandardError {
	return newError(ErrCodeNotReversible, "Only successful transactions can be reversed",
		fmt.Sprintf("transactionId: %s, status: %s", transactionID, status), false, nil)
}

// NewProcessingFailedError reports an unexpected failure while creating a transaction.
// Creation is never retried because there is no idempotency key to deduplicate on.
func NewProcessingFailedError(err error) *StandardError {
	return newError(ErrCodeProcessingFailed, "Transaction processing failed", detailsOf(err), false, err)
}

// NewReversalFailedError reports an unexpected failure while reversing. The
// status-guarded update makes a retry safe.
func NewReversalFailedError(err error) *StandardError {
	return newError(ErrCodeProcessingFailed, "Transaction reversal failed", detailsOf(err), true, err)
}

// NewHistoryFailedError reports a storage failure on a read path.
func NewHistoryFailedError(err error) *StandardError {
	return newError(ErrCodeProcessingFailed, "Failed to retrieve transaction history", detailsOf(err), true, err)
}

func NewDuplicateAccountNumberError(accountNumber string) *StandardError {
	return newError(ErrCodeDuplicateAccountNumber, "Account number already exists",
		fmt.Sprintf("accountNumber: %s", accountNumber), false, nil)
}

func NewApplicationNotFoundError(details string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found", details, false, nil)
}

func NewBankNotFoundError(bankID int64) *StandardError {
	return newError(ErrCodeBankNotFound, "Invalid bank selected",
		fmt.Sprintf("bankId: %d", bankID), false, nil)
}

func NewBranchNotFoundError(branchID int64) *StandardError {
	return newError(ErrCodeBranchNotFound, "Branch not found",
		fmt.Sprintf("branchId: %d", branchID), false, nil)
}

func NewInvalidBranchError(bankID, branchID int64) *StandardError {
	return newError(ErrCodeInvalidBranch, "Invalid branch selected for the specified bank",
		fmt.Sprintf("bankId: %d, branchId: %d", bankID, branchID), false, nil)
}

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Request validation failed", details, false, nil)
}

// NewInternalError wraps a storage failure outside the ledger's own taxonomy.
func NewInternalError(message string, err error) *StandardError {
	return newError(ErrCodeInternal, message, detailsOf(err), true, err)
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ============================================================================
// INSPECTION HELPERS
// ============================================================================

// AsStandard returns the first StandardError in err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// HTTPStatus maps a code onto the status the API returns for it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAccountNotFound,
		ErrCodeAccountNotEligible,
		ErrCodeTransactionNotFound,
		ErrCodeAlreadyReversed,
		ErrCodeNotReversible,
		ErrCodeDuplicateAccountNumber,
		ErrCodeBankNotFound,
		ErrCodeInvalidBranch,
		ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeApplicationNotFound, ErrCodeBranchNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// BPMN MAPPING
// ============================================================================

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// BPMNErrorMapping holds the error codes modelled as boundary events in the
// ledger processes. Codes missing here are thrown verbatim.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeAccountNotFound:        "ACCOUNT_NOT_FOUND",
	ErrCodeAccountNotEligible:     "ACCOUNT_NOT_ELIGIBLE",
	ErrCodeTransactionNotFound:    "TRANSACTION_NOT_FOUND",
	ErrCodeAlreadyReversed:        "ALREADY_REVERSED",
	ErrCodeNotReversible:          "NOT_REVERSIBLE",
	ErrCodeProcessingFailed:       "PROCESSING_FAILED",
	ErrCodeDuplicateAccountNumber: "DUPLICATE_ACCOUNT_NUMBER",
	ErrCodeValidationFailed:       "VALIDATION_FAILED",
}

// GetRetryCount is the number of retries a job failing with code gets.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProcessingFailed, ErrCodeInternal:
		return 3
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TRANSACTION") || strings.Contains(codeStr, "REVERS"):
		return "LEDGER"
	case strings.Contains(codeStr, "ACCOUNT") || strings.Contains(codeStr, "APPLICATION"):
		return "APPLICATION"
	case strings.Contains(codeStr, "BANK") || strings.Contains(codeStr, "BRANCH"):
		return "REFERENCE"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PROCESSING") || strings.Contains(codeStr, "INTERNAL"):
		return "SYSTEM"
	default:
		return "OTHER"
	}
}
