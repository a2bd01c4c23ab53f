package createtransaction

import "github.com/shopspring/decimal"

type Input struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Narration     string          `json:"narration"`
}

type Output struct {
	TransactionID     string `json:"transactionId"`
	TransactionStatus string `json:"transactionStatus"`
	AccountNumber     string `json:"accountNumber"`
	Amount            string `json:"amount"`
	CreatedAt         string `json:"createdAt"` // RFC 3339
}
