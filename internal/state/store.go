// Package state holds the in-memory UI state and notifies typed subscribers
// about changes. Only Store setters mutate state.
package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/types"
	"go.uber.org/zap"
)

// Listener receives the state after and before one mutation.
type Listener func(next, prev State)

type change struct {
	next, prev State
}

// Store is the reactive state container.
type Store struct {
	log *zap.Logger
	now func() time.Time

	mu    sync.RWMutex
	state State

	lmu       sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64

	qmu      sync.Mutex
	queue    []change
	draining bool

	readyOnce sync.Once
	readyCh   chan struct{}
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now for lastUsed stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store holding initial. The store is not ready until Initialize.
func NewStore(initial State, opts ...Option) *Store {
	s := &Store{
		state:     initial.Clone(),
		listeners: make(map[uint64]Listener),
		readyCh:   make(chan struct{}),
		now:       time.Now,
	}
	s.state.Ready = false
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrGlobal(s.log, "state")
	return s
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Ready reports whether Initialize has run.
func (s *Store) Ready() bool {
	select {
	case <-s.readyCh:
		return true
	default:
		return false
	}
}

// WaitReady blocks until Initialize has run or ctx is done.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeAll registers fn for every mutation.
func (s *Store) SubscribeAll(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

// Subscribe registers fn for changes of one selected slice. fn runs only when
// equal reports the selected values differ.
func Subscribe[T any](s *Store, selector func(State) T, equal func(a, b T) bool, fn func(next, prev T)) (unsubscribe func()) {
	return s.SubscribeAll(func(next, prev State) {
		a, b := selector(next), selector(prev)
		if !equal(a, b) {
			fn(a, b)
		}
	})
}

// Equal is the == comparison for Subscribe.
func Equal[T comparable](a, b T) bool { return a == b }

// update applies fn under the write lock and queues a notification. Notifications
// are delivered in mutation order; a setter called from a listener is queued and
// delivered after the current listener round.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	prev := s.state.Clone()
	fn(&s.state)
	next := s.state.Clone()

	s.qmu.Lock()
	s.queue = append(s.queue, change{next: next, prev: prev})
	s.qmu.Unlock()
	s.mu.Unlock()

	s.drain()
}

func (s *Store) drain() {
	s.qmu.Lock()
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	s.qmu.Unlock()

	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.qmu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		s.deliver(c)
	}
}

func (s *Store) deliver(c change) {
	s.lmu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	s.lmu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		s.lmu.Lock()
		fn, ok := s.listeners[id]
		s.lmu.Unlock()
		if !ok {
			continue
		}
		s.call(fn, c)
	}
}

func (s *Store) call(fn Listener, c change) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("State listener panicked", zap.Any("panic", r))
		}
	}()
	fn(c.next.Clone(), c.prev.Clone())
}

// Initialize replaces the whole state in one step and marks the store ready.
func (s *Store) Initialize(st State) {
	s.update(func(cur *State) {
		version := cur.BalanceVersion
		*cur = st.Clone()
		cur.BalanceVersion = version
		cur.Ready = true
		if cur.PreferredNetworks == nil {
			cur.PreferredNetworks = map[network.Type]int64{}
		}
		cur.HasAccounts = cur.HasAccounts || len(cur.Accounts) > 0
	})
	s.readyOnce.Do(func() { close(s.readyCh) })
}

func (s *Store) SetSelectedNetwork(n network.Network) {
	s.update(func(st *State) { st.SelectedNetwork = n })
}

func (s *Store) SetNetworkType(t network.Type) {
	s.update(func(st *State) { st.NetworkType = t })
}

// SetPreferredNetwork remembers the chain last chosen for a network type.
func (s *Store) SetPreferredNetwork(t network.Type, chainID int64) {
	s.update(func(st *State) {
		if st.PreferredNetworks == nil {
			st.PreferredNetworks = map[network.Type]int64{}
		}
		st.PreferredNetworks[t] = chainID
	})
}

// SetAccountsList replaces the account list. The active account is dropped when
// it is no longer listed, and refreshed from the list otherwise.
func (s *Store) SetAccountsList(accounts []types.WalletAccount) {
	s.update(func(st *State) {
		st.Accounts = append([]types.WalletAccount{}, accounts...)
		st.HasAccounts = len(accounts) > 0
		if st.ActiveAccount != nil {
			if a, ok := st.FindAccount(st.ActiveAccount.ID); ok {
				st.ActiveAccount = &a
			} else {
				st.ActiveAccount = nil
			}
		}
	})
}

func (s *Store) SetActiveAccount(a *types.WalletAccount) {
	s.update(func(st *State) {
		if a == nil {
			st.ActiveAccount = nil
			return
		}
		cp := *a
		st.ActiveAccount = &cp
	})
}

// SetActiveAccountByID activates a listed account and stamps its lastUsed.
// Unknown ids clear the active account.
func (s *Store) SetActiveAccountByID(id string) bool {
	var found bool
	now := s.now().UnixMilli()
	s.update(func(st *State) {
		for i := range st.Accounts {
			if st.Accounts[i].ID == id {
				st.Accounts[i].LastUsed = now
				a := st.Accounts[i]
				st.ActiveAccount = &a
				found = true
				return
			}
		}
		st.ActiveAccount = nil
	})
	return found
}

// AddAccount appends a, replacing an entry with the same id. The first account becomes active.
func (s *Store) AddAccount(a types.WalletAccount) {
	s.update(func(st *State) {
		replaced := false
		for i := range st.Accounts {
			if st.Accounts[i].ID == a.ID {
				st.Accounts[i] = a
				replaced = true
			}
		}
		if !replaced {
			st.Accounts = append(st.Accounts, a)
		}
		st.HasAccounts = true
		if st.ActiveAccount == nil || st.ActiveAccount.ID == a.ID {
			cp := a
			st.ActiveAccount = &cp
		}
	})
}

// RemoveAccount deletes an account; removing the active one activates the first remaining.
func (s *Store) RemoveAccount(id string) bool {
	var removed bool
	s.update(func(st *State) {
		kept := st.Accounts[:0:0]
		for _, a := range st.Accounts {
			if a.ID == id {
				removed = true
				continue
			}
			kept = append(kept, a)
		}
		st.Accounts = kept
		st.HasAccounts = len(kept) > 0
		if st.ActiveAccount != nil && st.ActiveAccount.ID == id {
			st.ActiveAccount = nil
			if len(kept) > 0 {
				first := kept[0]
				st.ActiveAccount = &first
			}
		}
	})
	return removed
}

// SetPreferredNetworks replaces the whole preferred-chain map.
func (s *Store) SetPreferredNetworks(prefs map[network.Type]int64) {
	s.update(func(st *State) {
		st.PreferredNetworks = make(map[network.Type]int64, len(prefs))
		for k, v := range prefs {
			st.PreferredNetworks[k] = v
		}
	})
}

func (s *Store) SetHasAccounts(has bool) {
	s.update(func(st *State) { st.HasAccounts = has })
}

func (s *Store) SetCustomNetworks(nets []network.CustomNetwork) {
	s.update(func(st *State) {
		st.CustomNetworks = append([]network.CustomNetwork{}, nets...)
		if cur, ok := st.SelectedNetwork.CustomNetwork(); ok {
			for _, c := range st.CustomNetworks {
				if c.ID == cur.ID {
					st.SelectedNetwork = network.Custom(c)
				}
			}
		}
	})
}

// AddCustomNetwork appends c, stamping CreatedAt when unset.
func (s *Store) AddCustomNetwork(c network.CustomNetwork) {
	if c.CreatedAt == 0 {
		c.CreatedAt = s.now().UnixMilli()
	}
	s.update(func(st *State) {
		st.CustomNetworks = append(st.CustomNetworks, c)
	})
}

// UpdateCustomNetwork replaces the network with c.ID. A selected network is refreshed too.
func (s *Store) UpdateCustomNetwork(c network.CustomNetwork) bool {
	var found bool
	s.update(func(st *State) {
		for i := range st.CustomNetworks {
			if st.CustomNetworks[i].ID == c.ID {
				st.CustomNetworks[i] = c
				found = true
			}
		}
		if cur, ok := st.SelectedNetwork.CustomNetwork(); ok && found && cur.ID == c.ID {
			st.SelectedNetwork = network.Custom(c)
		}
	})
	return found
}

// RemoveCustomNetwork deletes a custom network. If it was selected, the default
// chain for the current network type is selected instead.
func (s *Store) RemoveCustomNetwork(id string, reg *network.Registry) bool {
	var removed bool
	s.update(func(st *State) {
		kept := st.CustomNetworks[:0:0]
		for _, c := range st.CustomNetworks {
			if c.ID == id {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		st.CustomNetworks = kept
		if cur, ok := st.SelectedNetwork.CustomNetwork(); ok && cur.ID == id {
			st.SelectedNetwork = reg.DefaultFor(st.NetworkType)
		}
	})
	return removed
}

// UpdateCustomNetworkLastUsed stamps lastUsed in memory only.
func (s *Store) UpdateCustomNetworkLastUsed(id string) {
	now := s.now().UnixMilli()
	s.update(func(st *State) {
		for i := range st.CustomNetworks {
			if st.CustomNetworks[i].ID == id {
				st.CustomNetworks[i].LastUsed = now
			}
		}
		if cur, ok := st.SelectedNetwork.CustomNetwork(); ok && cur.ID == id {
			cur.LastUsed = now
			st.SelectedNetwork = network.Custom(cur)
		}
	})
}

func (s *Store) SetTheme(t types.Theme) {
	s.update(func(st *State) { st.Theme = t })
}

func (s *Store) SetWalletLocked(locked bool) {
	s.update(func(st *State) { st.WalletLocked = locked })
}

func (s *Store) SetGasSponsorshipEnabled(enabled bool) {
	s.update(func(st *State) { st.GasSponsorshipEnabled = enabled })
}

func (s *Store) ToggleGasSponsorship() {
	s.update(func(st *State) { st.GasSponsorshipEnabled = !st.GasSponsorshipEnabled })
}

func (s *Store) SetNetworkOnline(online bool) {
	s.update(func(st *State) { st.NetworkOnline = online })
}

// RefreshBalances bumps BalanceVersion so balance consumers refetch.
func (s *Store) RefreshBalances() {
	s.update(func(st *State) { st.BalanceVersion++ })
}
