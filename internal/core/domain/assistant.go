package domain

import "time"

type ChatRequest struct {
	Message string `json:"message"`
	Planet  string `json:"planet,omitempty"`
}

type ChatAnswer struct {
	Content string `json:"content"`
	Planet  string `json:"planet,omitempty"`
}

// OTPEntry is an issued one-time code bound to the email it was sent to.
type OTPEntry struct {
	Code      string
	Email     string
	ExpiresAt time.Time
}
