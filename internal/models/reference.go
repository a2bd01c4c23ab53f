package models

import "time"

type Bank struct {
	ID        int64     `json:"id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

type Branch struct {
	ID        int64     `json:"id"`
	Value     string    `json:"value"`
	BankID    int64     `json:"bankId"`
	CreatedAt time.Time `json:"createdAt"`
}
