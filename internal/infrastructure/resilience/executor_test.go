package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/property-search-assistant/internal/core/domain"
)

func TestExecuteRetriesTransientBackendFailure(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		BreakerEnabled: false,
	}, nil)

	attempts := 0
	errFlaky := domain.WrapError(domain.ErrTemporary, "lexical_search", errors.New("connection reset"))
	err := exec.Execute(context.Background(), "lexical_search", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	}, ClassifyDomainError)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryInvalidInput(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		BreakerEnabled: false,
	}, nil)

	attempts := 0
	errBad := domain.WrapError(domain.ErrInvalidInput, "extract", errors.New("malformed payload"))
	err := exec.Execute(context.Background(), "extract", func(context.Context) error {
		attempts++
		return errBad
	}, ClassifyDomainError)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:         1,
		InitialBackoff:      1 * time.Millisecond,
		MaxBackoff:          1 * time.Millisecond,
		Multiplier:          2,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  50 * time.Millisecond,
		BreakerProbeCalls:   1,
	}, nil)

	errDown := domain.WrapError(domain.ErrUnavailable, "vector_search", errors.New("index down"))
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "vector_search", func(context.Context) error {
			return errDown
		}, ClassifyDomainError)
		if !domain.IsKind(err, domain.ErrUnavailable) {
			t.Fatalf("expected unavailable error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "vector_search", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, ClassifyDomainError)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen must recognize breaker errors")
	}
}

func TestExecuteIsolatesBreakersPerOperation(t *testing.T) {
	exec := NewExecutor(Policy{
		MaxAttempts:         1,
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
		BreakerProbeCalls:   1,
	}, nil)

	errDown := domain.WrapError(domain.ErrUnavailable, "seller_stats", errors.New("db down"))
	_ = exec.Execute(context.Background(), "seller_stats", func(context.Context) error {
		return errDown
	}, ClassifyDomainError)

	err := exec.Execute(context.Background(), "engagement_stats", func(context.Context) error {
		return nil
	}, ClassifyDomainError)
	if err != nil {
		t.Fatalf("tripping one breaker must not affect another operation: %v", err)
	}
}
