package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationStatus(t *testing.T) {
	assert.Equal(t, "Draft", ApplicationStatusDraft.Label())
	assert.Equal(t, "Submitted", ApplicationStatusSubmitted.Label())
	assert.True(t, ApplicationStatusSubmitted.IsEligible())
	assert.False(t, ApplicationStatusDraft.IsEligible())

	s, err := ParseApplicationStatus("submitted")
	require.NoError(t, err)
	assert.Equal(t, ApplicationStatusSubmitted, s)

	_, err = ParseApplicationStatus("approved")
	assert.Error(t, err)
}

func TestRequestedApplicationStatus(t *testing.T) {
	assert.Equal(t, ApplicationStatusSubmitted, RequestedApplicationStatus("SUBMITTED"))
	assert.Equal(t, ApplicationStatusSubmitted, RequestedApplicationStatus("Submitted"))
	assert.Equal(t, ApplicationStatusDraft, RequestedApplicationStatus("draft"))
	assert.Equal(t, ApplicationStatusDraft, RequestedApplicationStatus(""))
	assert.Equal(t, ApplicationStatusDraft, RequestedApplicationStatus("pending"))
}

func TestTransactionStatus_StateMachine(t *testing.T) {
	all := []TransactionStatus{TransactionStatusSuccess, TransactionStatusFailed, TransactionStatusReversed}

	for _, from := range all {
		for _, to := range all {
			want := from == TransactionStatusSuccess && to == TransactionStatusReversed
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, TransactionStatusSuccess.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
	assert.True(t, TransactionStatusReversed.IsTerminal())
	assert.Equal(t, "Reversed", TransactionStatusReversed.Label())
}

func TestParseTransactionStatus(t *testing.T) {
	s, err := ParseTransactionStatus("Failed")
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusFailed, s)

	_, err = ParseTransactionStatus("PENDING")
	assert.Error(t, err)
}

func TestReversedNarration(t *testing.T) {
	got := ReversedNarration("payment for X", "customer request")
	assert.Equal(t, "payment for X - REVERSED: customer request", got)
	assert.Contains(t, got, "payment for X")
}
