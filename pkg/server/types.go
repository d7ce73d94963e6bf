package server

import "time"

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

type APIOperationResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type APIBalanceResponse struct {
	Layer     string     `json:"layer"`
	State     string     `json:"state"` // loading, error or result
	Balance   string     `json:"balance,omitempty"`
	Wei       string     `json:"wei,omitempty"`
	Error     string     `json:"error,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

type BridgeRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

type ResumeRequest struct {
	TxHash    string `json:"tx_hash"`
	Direction string `json:"direction"`
}
