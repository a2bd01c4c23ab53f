// Package search keeps a best-effort Elasticsearch copy of ledger transactions.
// Postgres remains the system of record; nothing reads this index back on the
// write path.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"transactionId": {"type": "keyword"},
			"accountNumber": {"type": "keyword"},
			"amount":        {"type": "scaled_float", "scaling_factor": 100},
			"narration":     {"type": "text"},
			"status":        {"type": "keyword"},
			"statusLabel":   {"type": "keyword"},
			"createdAt":     {"type": "date"}
		}
	}
}`

// Document is the indexed shape of a transaction.
type Document struct {
	TransactionID string    `json:"transactionId"`
	AccountNumber string    `json:"accountNumber"`
	Amount        string    `json:"amount"`
	Narration     string    `json:"narration"`
	Status        string    `json:"status"`
	StatusLabel   string    `json:"statusLabel"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewDocument(tx models.Transaction) Document {
	return Document{
		TransactionID: tx.TransactionID,
		AccountNumber: tx.AccountNumber,
		Amount:        tx.Amount.StringFixed(2),
		Narration:     tx.Narration,
		Status:        string(tx.Status),
		StatusLabel:   tx.Status.Label(),
		CreatedAt:     tx.CreatedAt,
	}
}

type Projector struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewProjector(client *elasticsearch.Client, index string, log logger.Logger) *Projector {
	return &Projector{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (p *Projector) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{p.index}}.Do(ctx, p.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", p.index, err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: %s", p.index, res.Status())
	}

	res, err = esapi.IndicesCreateRequest{
		Index: p.index,
		Body:  bytes.NewReader([]byte(indexMapping)),
	}.Do(ctx, p.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", p.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", p.index, res.Status())
	}
	p.logger.Info("search index created", nil)
	return nil
}

// Project upserts the document for tx, keyed by transaction id.
func (p *Projector) Project(ctx context.Context, tx models.Transaction) error {
	body, err := json.Marshal(NewDocument(tx))
	if err != nil {
		return fmt.Errorf("encode %s: %w", tx.TransactionID, err)
	}

	res, err := esapi.IndexRequest{
		Index:      p.index,
		DocumentID: tx.TransactionID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, p.client)
	if err != nil {
		return fmt.Errorf("index %s: %w", tx.TransactionID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index %s: %s", tx.TransactionID, res.Status())
	}
	return nil
}
