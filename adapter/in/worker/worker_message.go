package worker

import (
	"time"

	"order_worker/core/port/in"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

const (
	JobExtractBatch JobType = "extract.batch" // 이메일 묶음 추출 + 선택적 인벤토리 저장
)

type Message struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Retries   int             `json:"retries"`

	// StreamID is the Redis stream entry to ack; empty for in-process jobs.
	StreamID string `json:"-"`
}

func NewMessage(jobType JobType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   data,
		CreatedAt: time.Now(),
	}, nil
}

// BatchPayload is the body of a JobExtractBatch message. Request.BatchID is
// set by the producer so callers can poll for the result.
type BatchPayload struct {
	UserID  uuid.UUID              `json:"user_id"`
	Request in.ImportEmailsRequest `json:"request"`
}
