package resilience

import "time"

// RejectionEntry records one scan attempt that failed or was rejected,
// feeding the Supervisor's top-rejection-reasons report.
type RejectionEntry struct {
	Platform    string    `json:"platform"`
	Keyword     string    `json:"keyword,omitempty"`
	Reason      string    `json:"reason"`
	ErrorType   string    `json:"error_type"` // "transient" or "permanent"
	RetryCount  int       `json:"retry_count"`
	MaxRetries  int       `json:"max_retries"`
	NextRetryAt time.Time `json:"next_retry_at"`
	CreatedAt   time.Time `json:"created_at"`
	LastFailed  time.Time `json:"last_failed_at"`
}

// RejectionFilter specifies criteria for querying recorded rejections.
type RejectionFilter struct {
	ErrorType string `json:"error_type,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *RejectionEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
