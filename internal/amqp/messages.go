package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertMessage announces that an alert was recorded and is ready for delivery.
// It carries only identifiers; the consumer loads the alert from the database.
type AlertMessage struct {
	ID        string    `json:"id"`
	AlertID   int64     `json:"alert_id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAlertMessage creates a message with a fresh id
func NewAlertMessage(alertID, userID int64, alertType string) *AlertMessage {
	return &AlertMessage{
		ID:        uuid.NewString(),
		AlertID:   alertID,
		UserID:    userID,
		Type:      alertType,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON parses and checks a message body.
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AlertID <= 0 {
		return nil, fmt.Errorf("alert message without alert id")
	}
	return &msg, nil
}
