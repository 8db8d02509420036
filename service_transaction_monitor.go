package permkit

import (
	"sync"
	"time"
)

// TransactionMetrics provides transaction performance and failure statistics.
type TransactionMetrics struct {
	TotalTransactions      int64         `json:"total_transactions"`
	SuccessfulTransactions int64         `json:"successful_transactions"`
	FailedTransactions     int64         `json:"failed_transactions"`
	AverageDuration        time.Duration `json:"average_duration"`
	MaxDuration            time.Duration `json:"max_duration"`
	MinDuration            time.Duration `json:"min_duration"`
	LastReset              time.Time     `json:"last_reset"`
}

// transactionMonitor accumulates transaction statistics for the health
// surface.
type transactionMonitor struct {
	mu            sync.Mutex
	totalCount    int64
	successCount  int64
	failureCount  int64
	totalDuration time.Duration
	maxDuration   time.Duration
	minDuration   time.Duration
	lastReset     time.Time
}

func newTransactionMonitor() *transactionMonitor {
	return &transactionMonitor{
		lastReset: time.Now(),
	}
}

func (tm *transactionMonitor) record(duration time.Duration, success bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.totalCount++
	tm.totalDuration += duration
	if success {
		tm.successCount++
	} else {
		tm.failureCount++
	}
	if duration > tm.maxDuration {
		tm.maxDuration = duration
	}
	if tm.minDuration == 0 || duration < tm.minDuration {
		tm.minDuration = duration
	}
}

// GetTransactionMetrics returns a snapshot of transaction statistics.
func (s *Service) GetTransactionMetrics() TransactionMetrics {
	tm := s.txMonitor
	tm.mu.Lock()
	defer tm.mu.Unlock()

	metrics := TransactionMetrics{
		TotalTransactions:      tm.totalCount,
		SuccessfulTransactions: tm.successCount,
		FailedTransactions:     tm.failureCount,
		MaxDuration:            tm.maxDuration,
		MinDuration:            tm.minDuration,
		LastReset:              tm.lastReset,
	}
	if tm.totalCount > 0 {
		metrics.AverageDuration = tm.totalDuration / time.Duration(tm.totalCount)
	}
	return metrics
}

// ResetTransactionMetrics clears accumulated transaction statistics.
func (s *Service) ResetTransactionMetrics() {
	tm := s.txMonitor
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.totalCount = 0
	tm.successCount = 0
	tm.failureCount = 0
	tm.totalDuration = 0
	tm.maxDuration = 0
	tm.minDuration = 0
	tm.lastReset = time.Now()
}

// IsTransactionHealthy reports whether recent transactions look sound:
// healthy means no failures or a failure rate below ten percent.
func (s *Service) IsTransactionHealthy() bool {
	tm := s.txMonitor
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.totalCount == 0 {
		return true
	}
	return float64(tm.failureCount)/float64(tm.totalCount) < 0.1
}
