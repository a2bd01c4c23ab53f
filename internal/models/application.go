package models

import (
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus is the onboarding state of a merchant application.
// Draft -> Submitted is one-way; there is no path back to Draft.
type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "DRAFT"
	ApplicationStatusSubmitted ApplicationStatus = "SUBMITTED"
)

// Label is the display name shown to API clients.
func (s ApplicationStatus) Label() string {
	switch s {
	case ApplicationStatusDraft:
		return "Draft"
	case ApplicationStatusSubmitted:
		return "Submitted"
	default:
		return string(s)
	}
}

// IsEligible reports whether transactions may be posted against the account.
func (s ApplicationStatus) IsEligible() bool {
	return s == ApplicationStatusSubmitted
}

// ParseApplicationStatus accepts the stored name or the label, in any case.
func ParseApplicationStatus(v string) (ApplicationStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case string(ApplicationStatusDraft):
		return ApplicationStatusDraft, nil
	case string(ApplicationStatusSubmitted):
		return ApplicationStatusSubmitted, nil
	default:
		return "", fmt.Errorf("unknown application status %q", v)
	}
}

// RequestedApplicationStatus maps the status field of a submission: SUBMITTED
// in any case selects Submitted, anything else (including empty) saves a Draft.
func RequestedApplicationStatus(v string) ApplicationStatus {
	if strings.EqualFold(strings.TrimSpace(v), string(ApplicationStatusSubmitted)) {
		return ApplicationStatusSubmitted
	}
	return ApplicationStatusDraft
}

type Application struct {
	ID                 int64             `json:"id"`
	BankName           string            `json:"bankName"`
	BranchName         string            `json:"branchName"`
	AccountName        string            `json:"accountName"`
	AccountNumber      string            `json:"accountNumber"`
	ProofOfBankAccount *string           `json:"proofOfBankAccount,omitempty"`
	Status             ApplicationStatus `json:"status"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}
