package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Strategy selects which extraction stages run for an email.
type Strategy string

const (
	StrategyAuto    Strategy = "auto"    // custom → ai → generic 순서로 체인
	StrategyCustom  Strategy = "custom"  // retailer structural parser only
	StrategyAI      Strategy = "ai"      // semantic extractor only
	StrategyGeneric Strategy = "generic" // generic fallback parser only
)

// ParseStrategy maps user input to a Strategy. Unknown values become auto.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyCustom:
		return StrategyCustom
	case StrategyAI:
		return StrategyAI
	case StrategyGeneric:
		return StrategyGeneric
	default:
		return StrategyAuto
	}
}

// Stage names used in logs and latency metrics.
const (
	StageCustom  = "custom"
	StageAI      = "ai"
	StageGeneric = "generic"
)

// StageOutcome is the result class of a single stage run.
type StageOutcome string

const (
	OutcomeSuccess StageOutcome = "success"
	OutcomeEmpty   StageOutcome = "empty"   // ran fine, found nothing
	OutcomeFailure StageOutcome = "failure" // errored or panicked
	OutcomeSkipped StageOutcome = "skipped"
)

// StageReport records what one stage did for one email.
type StageReport struct {
	Stage    string        `json:"stage"`
	Outcome  StageOutcome  `json:"outcome"`
	Products int           `json:"products"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// EmailStatus is the per-email result class in a batch.
type EmailStatus string

const (
	EmailSucceeded EmailStatus = "succeeded"
	EmailEmpty     EmailStatus = "empty"
	EmailFailed    EmailStatus = "failed"
	EmailSkipped   EmailStatus = "skipped" // batch cancelled before this email started
)

// BatchRequest describes one batch extraction run for a user.
type BatchRequest struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Emails       []EmailContent `json:"emails"`
	RetailerHint string         `json:"retailer,omitempty"`
	Strategy     Strategy       `json:"strategy,omitempty"`
	Import       bool           `json:"import"`
}

// EmailResult is the outcome for one email in a batch.
type EmailResult struct {
	EmailID    string             `json:"email_id"`
	Retailer   string             `json:"retailer"`
	Status     EmailStatus        `json:"status"`
	Error      string             `json:"error,omitempty"`
	Found      int                `json:"found"`
	Duplicates int                `json:"duplicates"`
	Products   []ExtractedProduct `json:"products"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	Emails      []EmailResult `json:"emails"`
	TotalFound  int           `json:"total_found"`
	Accepted    int           `json:"accepted"`
	Duplicates  int           `json:"duplicates"`
	Imported    int           `json:"imported"`
	Cancelled   bool          `json:"cancelled"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// AcceptedProducts returns every non-duplicate product in email order.
func (r *BatchResult) AcceptedProducts() []ExtractedProduct {
	var out []ExtractedProduct
	for _, e := range r.Emails {
		out = append(out, e.Products...)
	}
	return out
}

// CountByStatus returns how many emails ended in status s.
func (r *BatchResult) CountByStatus(s EmailStatus) int {
	n := 0
	for _, e := range r.Emails {
		if e.Status == s {
			n++
		}
	}
	return n
}
