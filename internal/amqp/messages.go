package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"rareport/internal/core"
)

// UploadProcessedMessage announces the outcome of one ingestion. It carries
// the summary only, never transaction rows.
type UploadProcessedMessage struct {
	Summary     core.UploadSummary `json:"summary"`
	PublishedAt time.Time          `json:"published_at"`
}

func NewUploadProcessedMessage(s core.UploadSummary) *UploadProcessedMessage {
	return &UploadProcessedMessage{Summary: s, PublishedAt: time.Now().UTC()}
}

func (m *UploadProcessedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadProcessedMessageFromJSON decodes and sanity-checks a message body.
func UploadProcessedMessageFromJSON(data []byte) (*UploadProcessedMessage, error) {
	var msg UploadProcessedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Summary.Status == "" {
		return nil, fmt.Errorf("message has no upload status")
	}
	return &msg, nil
}
