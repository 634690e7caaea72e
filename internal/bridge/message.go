// Package bridge connects the UI state container to a background execution
// context over a message channel.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/cyphera/cyphera-wallet/internal/types"
)

// MessageType names a bridge message.
type MessageType string

// Inbound messages, sent by the background.
const (
	TypeWalletLocked        MessageType = "WALLET_LOCKED"
	TypeWalletUnlocked      MessageType = "WALLET_UNLOCKED"
	TypeNetworkStatusChange MessageType = "NETWORK_STATUS_CHANGE"
	TypeAccountActivated    MessageType = "ACCOUNT_ACTIVATED"
	TypeAccountsUpdated     MessageType = "ACCOUNTS_UPDATED"
	TypeBalanceUpdate       MessageType = "BALANCE_UPDATE"
	TypeNetworkChanged      MessageType = "NETWORK_CHANGED"
	TypeStorageChanged      MessageType = "STORAGE_CHANGED"
)

// Outbound messages. NETWORK_CHANGED is used in both directions.
const (
	TypeWalletLockStatusChanged MessageType = "WALLET_LOCK_STATUS_CHANGED"
	TypeCheckNetworkStatus      MessageType = "CHECK_NETWORK_STATUS"
	TypeAck                     MessageType = "ACK"
)

// Message is the bridge envelope. NETWORK_CHANGED from the background carries
// its body in Data rather than Payload; both are accepted.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Ack acknowledges an inbound message.
type Ack struct {
	Received bool `json:"received"`
}

type accountActivatedPayload struct {
	Account *types.WalletAccount `json:"account"`
}

type accountsUpdatedPayload struct {
	HasAccounts bool `json:"hasAccounts"`
}

type networkStatusPayload struct {
	Online bool `json:"online"`
}

type chainPayload struct {
	ChainID int64 `json:"chainId"`
}

type lockStatusPayload struct {
	Locked bool `json:"locked"`
}

type storageChangedPayload struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// NewMessage builds an outbound message with a JSON payload.
func NewMessage(t MessageType, payload any) (Message, error) {
	m := Message{Type: t}
	if payload == nil {
		return m, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	m.Payload = raw
	return m, nil
}

// body returns Payload, falling back to Data.
func (m Message) body() json.RawMessage {
	if len(m.Payload) > 0 {
		return m.Payload
	}
	return m.Data
}

func (m Message) decode(v any) error {
	body := m.body()
	if len(body) == 0 {
		return fmt.Errorf("%s: missing payload", m.Type)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", m.Type, err)
	}
	return nil
}

// decodeOnline accepts either a bare boolean or {"online": bool}.
func (m Message) decodeOnline() (bool, error) {
	var online bool
	if err := json.Unmarshal(m.body(), &online); err == nil {
		return online, nil
	}
	var p networkStatusPayload
	if err := m.decode(&p); err != nil {
		return false, err
	}
	return p.Online, nil
}
