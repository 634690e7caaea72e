package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/state"

	"go.uber.org/zap"
)

// Syncer is the part of the storage synchronizer the bridge drives.
type Syncer interface {
	HandleNetworkChanged(ctx context.Context, chainID int64) bool
	ApplyExternalChange(ctx context.Context, key string, raw []byte) error
}

// echoes holds the values being applied from the background. State listeners
// run synchronously inside the setter, so a notification for a held value is
// the echo of an inbound message.
type echoes struct {
	mu     sync.Mutex
	chain  int64
	locked *bool
}

func (e *echoes) holdChain(id int64) func() {
	e.mu.Lock()
	e.chain = id
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.chain = 0
		e.mu.Unlock()
	}
}

func (e *echoes) holdLocked(locked bool) func() {
	e.mu.Lock()
	e.locked = &locked
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.locked = nil
		e.mu.Unlock()
	}
}

func (e *echoes) isChain(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain != 0 && e.chain == id
}

func (e *echoes) isLocked(locked bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked != nil && *e.locked == locked
}

// Dispatcher applies inbound bridge messages to the state store.
type Dispatcher struct {
	state  *state.Store
	syncer Syncer
	echo   *echoes
	log    *zap.Logger
}

func NewDispatcher(st *state.Store, syncer Syncer, l *zap.Logger) *Dispatcher {
	return &Dispatcher{
		state:  st,
		syncer: syncer,
		echo:   &echoes{},
		log:    logger.OrGlobal(l, "bridge"),
	}
}

// Handle applies msg and acknowledges it. Unknown types are acknowledged and
// ignored; a malformed payload is acknowledged and reported as an error.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (Ack, error) {
	ack := Ack{Received: true}

	switch msg.Type {
	case TypeWalletUnlocked:
		d.setLocked(false)

	case TypeWalletLocked:
		d.setLocked(true)

	case TypeNetworkStatusChange:
		online, err := msg.decodeOnline()
		if err != nil {
			return ack, err
		}
		d.state.SetNetworkOnline(online)

	case TypeAccountActivated:
		var p accountActivatedPayload
		if err := msg.decode(&p); err != nil {
			return ack, err
		}
		if p.Account == nil {
			break
		}
		if _, listed := d.state.Get().FindAccount(p.Account.ID); listed {
			d.state.SetActiveAccountByID(p.Account.ID)
		} else {
			d.state.SetActiveAccount(p.Account)
		}

	case TypeAccountsUpdated:
		var p accountsUpdatedPayload
		if err := msg.decode(&p); err != nil {
			return ack, err
		}
		d.state.SetHasAccounts(p.HasAccounts)

	case TypeBalanceUpdate:
		d.state.RefreshBalances()

	case TypeNetworkChanged:
		var p chainPayload
		if err := msg.decode(&p); err != nil {
			return ack, err
		}
		if p.ChainID <= 0 {
			break
		}
		release := d.echo.holdChain(p.ChainID)
		applied := d.syncer.HandleNetworkChanged(ctx, p.ChainID)
		release()
		if applied {
			d.log.Info("Network changed by background", zap.Int64("chain_id", p.ChainID))
		}

	case TypeStorageChanged:
		var p storageChangedPayload
		if err := msg.decode(&p); err != nil {
			return ack, err
		}
		var raw []byte
		if len(p.Value) > 0 && !bytes.Equal(p.Value, []byte("null")) {
			raw = p.Value
		}
		if err := d.syncer.ApplyExternalChange(ctx, p.Key, raw); err != nil {
			return ack, err
		}

	default:
		d.log.Debug("Ignoring unknown bridge message", zap.String("type", string(msg.Type)))
	}
	return ack, nil
}

func (d *Dispatcher) setLocked(locked bool) {
	release := d.echo.holdLocked(locked)
	defer release()
	d.state.SetWalletLocked(locked)
}

// HandleRaw decodes a JSON envelope and handles it.
func (d *Dispatcher) HandleRaw(ctx context.Context, data []byte) (Message, Ack, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, Ack{}, err
	}
	ack, err := d.Handle(ctx, msg)
	return msg, ack, err
}
