package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrWalletExists   = errors.New("this wallet is already being tracked")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrAlertNotFound  = errors.New("alert not found")
	ErrUnknownChain   = errors.New("unknown chain")
	ErrInvalidAlert   = errors.New("invalid alert")
	ErrCycleInFlight  = errors.New("a refresh cycle is already running")
)

// PortfolioErrorMessage is what users see when a refresh cycle fails.
const PortfolioErrorMessage = "Failed to fetch portfolio data. Please check your API keys."

// ProviderErrorKind classifies an upstream failure.
type ProviderErrorKind string

const (
	KindStatus  ProviderErrorKind = "status"
	KindTimeout ProviderErrorKind = "timeout"
	KindDNS     ProviderErrorKind = "dns"
	KindNetwork ProviderErrorKind = "network"
	KindDecode  ProviderErrorKind = "decode"
)

// ProviderError is returned by upstream clients on a non-2xx response or a
// transport failure. Status is 0 when no response was received.
type ProviderError struct {
	Provider string
	Status   int
	Kind     ProviderErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: HTTP 429, any 5xx,
// a timeout or a DNS resolution failure.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindDNS:
		return true
	case KindStatus:
		return e.Status == 429 || e.Status >= 500
	}
	return false
}

// IsRetryable reports whether err wraps a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}

// ConfigError signals missing or invalid configuration, e.g. an absent API key.
// It is never retried.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// AggregationError is raised when upstream data cannot be turned into a snapshot.
type AggregationError struct {
	Wallet  string
	Symbol  string
	Message string
}

func (e *AggregationError) Error() string {
	if e.Wallet != "" {
		return fmt.Sprintf("aggregation failed for wallet %s (%s): %s", e.Wallet, e.Symbol, e.Message)
	}
	return "aggregation failed: " + e.Message
}
