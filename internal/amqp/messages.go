package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

// ChangeKind tells consumers what happened to the ledger.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeDeleted ChangeKind = "deleted"
)

// LedgerChangeMessage announces one committed add or delete. It carries only
// identifiers; consumers re-read the ledger for anything else.
type LedgerChangeMessage struct {
	Kind      ChangeKind    `json:"kind"`
	Category  core.Category `json:"category"`
	ID        int64         `json:"id"`
	Version   int64         `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewLedgerChangeMessage(kind ChangeKind, category core.Category, id, version int64) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Kind:      kind,
		Category:  category,
		ID:        id,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes a message body and rejects unknown kinds.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case ChangeAdded, ChangeDeleted:
	default:
		return nil, fmt.Errorf("unknown change kind %q", msg.Kind)
	}
	return &msg, nil
}
