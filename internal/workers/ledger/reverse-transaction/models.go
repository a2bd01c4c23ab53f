package reversetransaction

type Input struct {
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
}

type Output struct {
	TransactionID     string `json:"transactionId"`
	TransactionStatus string `json:"transactionStatus"`
	AccountNumber     string `json:"accountNumber"`
	Amount            string `json:"amount"`
	ReversalReason    string `json:"reversalReason"`
	Narration         string `json:"narration"`
}
