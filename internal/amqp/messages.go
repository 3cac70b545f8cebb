package amqp

import (
	"encoding/json"
	"time"
)

// HandoverExportMessage tells the worker that a closed period is ready
// for export. It carries only the period ID, the worker loads the full
// archive from the database.
type HandoverExportMessage struct {
	PeriodID  string    `json:"periodId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHandoverExportMessage(periodID string) *HandoverExportMessage {
	return &HandoverExportMessage{
		PeriodID:  periodID,
		Timestamp: time.Now(),
	}
}

func (m *HandoverExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func HandoverExportMessageFromJSON(data []byte) (*HandoverExportMessage, error) {
	var msg HandoverExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
