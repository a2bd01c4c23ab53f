package validation

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins the field errors into one line for API responses and logs.
func (r *ValidationResult) Summary() string {
	if r.Valid || len(r.Errors) == 0 {
		return ""
	}
	out := ""
	for i, e := range r.Errors {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return out
}

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON Schema document.
func Compile(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, document string) *Schema {
	s, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a raw JSON body. Malformed JSON is reported as a single
// INVALID_JSON error rather than a Go error.
func (s *Schema) Validate(body []byte) *ValidationResult {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: "malformed JSON body", Code: "INVALID_JSON"}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "(root)" {
			if p, ok := re.Details()["property"].(string); ok {
				field = p
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationResult{Errors: errs}
}

var (
	minAmount = decimal.New(1, -2)
	// maxAmount is the first value that no longer fits NUMERIC(15,2).
	maxAmount = decimal.New(1, 13)
)

// ValidateAmount enforces a positive currency amount with at most two decimal
// places and at most 13 integer digits.
func ValidateAmount(amount decimal.Decimal) *ValidationError {
	if amount.LessThan(minAmount) {
		return &ValidationError{Field: "amount", Message: "amount must be at least 0.01", Code: "minimum"}
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return &ValidationError{Field: "amount", Message: "amount must be less than 10000000000000", Code: "maximum"}
	}
	if !amount.Equal(amount.Round(2)) {
		return &ValidationError{Field: "amount", Message: "amount must have at most 2 decimal places", Code: "scale"}
	}
	return nil
}

const nonBlank = `{"type": "string", "minLength": 1, "pattern": "\\S"}`

// TransactionRequest is the body of POST /api/transaction.
var TransactionRequest = MustCompile("transaction-request", `{
	"type": "object",
	"required": ["accountNumber", "amount", "narration"],
	"properties": {
		"accountNumber": `+nonBlank+`,
		"amount": {"type": ["number", "string"]},
		"narration": `+nonBlank+`
	}
}`)

// ReversalRequest is the body of POST /api/reverse.
var ReversalRequest = MustCompile("reversal-request", `{
	"type": "object",
	"required": ["transactionId", "reason"],
	"properties": {
		"transactionId": `+nonBlank+`,
		"reason": `+nonBlank+`
	}
}`)

// ApplicationSubmitRequest is the body of POST /api/applications/submit.
var ApplicationSubmitRequest = MustCompile("application-submit-request", `{
	"type": "object",
	"required": ["bankId", "branchId", "accountName", "accountNumber"],
	"properties": {
		"bankId": {"type": "integer", "minimum": 1},
		"branchId": {"type": "integer", "minimum": 1},
		"bankName": {"type": "string"},
		"branchName": {"type": "string"},
		"accountName": `+nonBlank+`,
		"accountNumber": `+nonBlank+`,
		"proofOfBankAccount": {"type": ["string", "null"]},
		"status": {"type": ["string", "null"]}
	}
}`)
