// Package storagesync hydrates the UI state from the durable store at startup and
// keeps the two in sync afterwards.
package storagesync

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/cyphera/cyphera-wallet/internal/constants"
	"github.com/cyphera/cyphera-wallet/internal/kvstore"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/state"
	"github.com/cyphera/cyphera-wallet/internal/types"
	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
)

// maxInflight bounds the per-key list of values awaiting their store echo.
const maxInflight = 16

// Config toggles deployment-specific behaviour.
type Config struct {
	// AllowMainnet=false forces testnet and rewrites a stored mainnet type.
	AllowMainnet bool
	// ImmediateLockWrites persists wallet_locked with SetImmediate.
	ImmediateLockWrites bool
}

type keyState struct {
	last     string
	inflight []string
}

// Synchronizer owns hydration and the state→store subscriptions.
type Synchronizer struct {
	store  kvstore.Store
	writer Writer
	state  *state.Store
	reg    *network.Registry
	cfg    Config
	log    *zap.Logger

	mu            sync.Mutex
	keys          map[string]*keyState
	lastNetworkID int64
	unsubs        []func()
	started       bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// New wires a synchronizer. store is only read from; all writes go through writer.
func New(store kvstore.Store, writer Writer, st *state.Store, reg *network.Registry, cfg Config, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:  store,
		writer: writer,
		state:  st,
		reg:    reg,
		cfg:    cfg,
		keys:   make(map[string]*keyState),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrGlobal(s.log, "storagesync")
	return s
}

func (s *Synchronizer) defaultType() network.Type {
	if s.cfg.AllowMainnet {
		return network.TypeMainnet
	}
	return network.TypeTestnet
}

// Hydrate loads persisted preferences into the state store in a single Initialize.
// Any read or decode failure applies the full default set instead.
func (s *Synchronizer) Hydrate(ctx context.Context) state.State {
	st, err := s.load(ctx)
	if err != nil {
		s.log.Error("Failed to hydrate from storage, using defaults", zap.Error(err))
		st = state.Defaults(s.reg, s.defaultType())
	}

	s.state.Initialize(st)
	hydrated := s.state.Get()
	s.remember(hydrated)

	s.log.Info("Hydrated state from storage",
		zap.Int64("chain_id", hydrated.SelectedNetwork.ChainID()),
		zap.String("network_type", string(hydrated.NetworkType)),
		zap.Int("accounts", len(hydrated.Accounts)),
		zap.Int("custom_networks", len(hydrated.CustomNetworks)),
	)
	s.log.Debug("Hydrated state", zap.String("state", spew.Sdump(hydrated)))
	return hydrated
}

func (s *Synchronizer) load(ctx context.Context) (state.State, error) {
	st := state.Defaults(s.reg, s.defaultType())

	var netType network.Type
	found, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyNetworkType, &netType)
	if err != nil {
		return st, err
	}
	if found {
		if netType, err = network.ParseType(string(netType)); err != nil {
			return st, err
		}
		if netType == network.TypeMainnet && !s.cfg.AllowMainnet {
			s.log.Warn("Mainnet is not allowed, switching stored network type to testnet")
			netType = network.TypeTestnet
			s.persist(constants.StorageKeyNetworkType, netType, false)
		}
		st.NetworkType = netType
	}

	if _, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyCustomNetworks, &st.CustomNetworks); err != nil {
		return st, err
	}
	if st.CustomNetworks == nil {
		st.CustomNetworks = []network.CustomNetwork{}
	}

	if _, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyPreferredNetworks, &st.PreferredNetworks); err != nil {
		return st, err
	}
	if st.PreferredNetworks == nil {
		st.PreferredNetworks = map[network.Type]int64{}
	}

	var selectedID int64
	hasSelected, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeySelectedNetwork, &selectedID)
	if err != nil {
		return st, err
	}
	st.SelectedNetwork = s.resolveNetwork(selectedID, hasSelected, st)

	if _, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyWalletAccounts, &st.Accounts); err != nil {
		return st, err
	}
	if st.Accounts == nil {
		st.Accounts = []types.WalletAccount{}
	}
	st.HasAccounts = len(st.Accounts) > 0

	var activeID *string
	if _, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyActiveAccountID, &activeID); err != nil {
		return st, err
	}
	if activeID != nil {
		if a, ok := st.FindAccount(*activeID); ok {
			st.ActiveAccount = &a
		} else {
			s.log.Warn("Stored active account not found", zap.String("account_id", *activeID))
		}
	}

	var theme types.Theme
	found, err = kvstore.GetJSON(ctx, s.store, constants.StorageKeyTheme, &theme)
	if err != nil {
		return st, err
	}
	if found {
		if st.Theme, err = types.ParseTheme(string(theme)); err != nil {
			return st, err
		}
	}

	if _, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyWalletLocked, &st.WalletLocked); err != nil {
		return st, err
	}
	if _, err := kvstore.GetJSON(ctx, s.store, constants.StorageKeyGasSponsorship, &st.GasSponsorshipEnabled); err != nil {
		return st, err
	}
	return st, nil
}

// resolveNetwork picks the stored chain, then the preferred chain for the type,
// then the default chain for the type.
func (s *Synchronizer) resolveNetwork(id int64, has bool, st state.State) network.Network {
	if has {
		if n, ok := s.reg.Resolve(id, st.CustomNetworks); ok && s.networkAllowed(n) {
			return n
		}
		s.log.Warn("Stored network did not resolve, falling back", zap.Int64("chain_id", id))
	}
	if pref, ok := st.PreferredNetworks[st.NetworkType]; ok {
		if n, ok := s.reg.Resolve(pref, st.CustomNetworks); ok && s.networkAllowed(n) {
			return n
		}
	}
	return s.reg.DefaultFor(st.NetworkType)
}

func (s *Synchronizer) networkAllowed(n network.Network) bool {
	return s.cfg.AllowMainnet || n.Type() != network.TypeMainnet
}

// encoded maps each storage key to the value persisted for st.
func encoded(st state.State) map[string]any {
	return map[string]any{
		constants.StorageKeySelectedNetwork:   st.SelectedNetwork.ChainID(),
		constants.StorageKeyNetworkType:       st.NetworkType,
		constants.StorageKeyPreferredNetworks: nonNilMap(st.PreferredNetworks),
		constants.StorageKeyWalletAccounts:    nonNil(st.Accounts),
		constants.StorageKeyActiveAccountID:   activeID(st),
		constants.StorageKeyCustomNetworks:    nonNil(st.CustomNetworks),
		constants.StorageKeyTheme:             st.Theme,
		constants.StorageKeyWalletLocked:      st.WalletLocked,
		constants.StorageKeyGasSponsorship:    st.GasSponsorshipEnabled,
	}
}

func activeID(st state.State) *string {
	if st.ActiveAccount == nil {
		return nil
	}
	id := st.ActiveAccount.ID
	return &id
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func nonNilMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}

// remember seeds the last-known value of every key from st.
func (s *Synchronizer) remember(st state.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, v := range encoded(st) {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		s.keyStateLocked(key).last = string(raw)
	}
	s.lastNetworkID = st.SelectedNetwork.ChainID()
}

func (s *Synchronizer) keyStateLocked(key string) *keyState {
	ks, ok := s.keys[key]
	if !ok {
		ks = &keyState{}
		s.keys[key] = ks
	}
	return ks
}

// persist hands v to the writer unless it equals the last value written or accepted for key.
func (s *Synchronizer) persist(key string, v any, immediate bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Error("Failed to encode value for storage", zap.String("key", key), zap.Error(err))
		return
	}

	s.mu.Lock()
	ks := s.keyStateLocked(key)
	if ks.last == string(raw) {
		s.mu.Unlock()
		return
	}
	ks.last = string(raw)
	ks.inflight = append(ks.inflight, string(raw))
	if len(ks.inflight) > maxInflight {
		ks.inflight = ks.inflight[len(ks.inflight)-maxInflight:]
	}
	s.mu.Unlock()

	if immediate {
		s.writer.SetImmediate(key, raw)
	} else {
		s.writer.Set(key, raw)
	}
}

// Start subscribes to every persisted slice of the state store.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	unsubs := []func(){
		state.Subscribe(s.state, func(st state.State) network.Network { return st.SelectedNetwork },
			network.Network.Equal, s.onNetworkChange),
		watch(s, constants.StorageKeyNetworkType, func(st state.State) network.Type { return st.NetworkType },
			state.Equal[network.Type], false),
		watch(s, constants.StorageKeyPreferredNetworks, func(st state.State) map[network.Type]int64 { return nonNilMap(st.PreferredNetworks) },
			func(a, b map[network.Type]int64) bool { return maps.Equal(a, b) }, false),
		watch(s, constants.StorageKeyWalletAccounts, func(st state.State) []types.WalletAccount { return nonNil(st.Accounts) },
			func(a, b []types.WalletAccount) bool { return slices.Equal(a, b) }, false),
		watch(s, constants.StorageKeyActiveAccountID, activeID,
			func(a, b *string) bool { return ptrEqual(a, b) }, false),
		watch(s, constants.StorageKeyCustomNetworks, func(st state.State) []network.CustomNetwork { return nonNil(st.CustomNetworks) },
			sameCustomNetworks, false),
		watch(s, constants.StorageKeyTheme, func(st state.State) types.Theme { return st.Theme },
			state.Equal[types.Theme], false),
		watch(s, constants.StorageKeyWalletLocked, func(st state.State) bool { return st.WalletLocked },
			state.Equal[bool], s.cfg.ImmediateLockWrites),
		watch(s, constants.StorageKeyGasSponsorship, func(st state.State) bool { return st.GasSponsorshipEnabled },
			state.Equal[bool], false),
	}

	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsubs...)
	s.mu.Unlock()
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameCustomNetworks(a, b []network.CustomNetwork) bool {
	return slices.EqualFunc(a, b, network.CustomNetwork.SameDefinition)
}

// watch persists the selected value under key whenever it changes. sel must
// return the value in its stored form.
func watch[T any](s *Synchronizer, key string, sel func(state.State) T, eq func(a, b T) bool, immediate bool) func() {
	return state.Subscribe(s.state, sel, eq, func(next, _ T) {
		s.persist(key, next, immediate)
	})
}

func (s *Synchronizer) onNetworkChange(next, _ network.Network) {
	chainID := next.ChainID()

	s.mu.Lock()
	s.lastNetworkID = chainID
	s.mu.Unlock()

	s.persist(constants.StorageKeySelectedNetwork, chainID, false)

	if c, ok := next.CustomNetwork(); ok {
		s.state.UpdateCustomNetworkLastUsed(c.ID)
	}

	cur := s.state.Get()
	if cur.PreferredNetworks[cur.NetworkType] != chainID {
		s.state.SetPreferredNetwork(cur.NetworkType, chainID)
	}
}

// Stop removes every subscription and watcher.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.started = false
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Watch applies change notifications from w for every tracked key.
func (s *Synchronizer) Watch(w kvstore.Watcher) {
	stop := w.Watch(func(key string, value []byte) {
		if !slices.Contains(constants.StorageKeys, key) {
			return
		}
		if err := s.ApplyExternalChange(context.Background(), key, value); err != nil {
			s.log.Error("Failed to apply external storage change", zap.String("key", key), zap.Error(err))
		}
	})

	s.mu.Lock()
	s.unsubs = append(s.unsubs, stop)
	s.mu.Unlock()
}

// accept reports whether raw is a genuine external change for key and records it.
// Echoes of values this synchronizer wrote are consumed and rejected.
func (s *Synchronizer) accept(key string, raw []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks := s.keyStateLocked(key)
	v := string(raw)
	if i := slices.Index(ks.inflight, v); i >= 0 {
		ks.inflight = ks.inflight[i+1:]
		return false
	}
	if raw != nil && ks.last == v {
		return false
	}
	ks.last = v
	return true
}

// ApplyExternalChange maps a change made outside this process onto the state
// store. A nil raw value means the key was deleted and its default applies.
func (s *Synchronizer) ApplyExternalChange(_ context.Context, key string, raw []byte) error {
	if !s.accept(key, raw) {
		return nil
	}
	def := state.Defaults(s.reg, s.defaultType())

	switch key {
	case constants.StorageKeySelectedNetwork:
		if raw == nil {
			return nil
		}
		var id int64
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.applyNetwork(id)

	case constants.StorageKeyNetworkType:
		t := def.NetworkType
		if raw != nil {
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			parsed, err := network.ParseType(v)
			if err != nil {
				return err
			}
			t = parsed
		}
		if t == network.TypeMainnet && !s.cfg.AllowMainnet {
			return fmt.Errorf("mainnet is not allowed")
		}
		s.state.SetNetworkType(t)

	case constants.StorageKeyPreferredNetworks:
		prefs := map[network.Type]int64{}
		if raw != nil {
			if err := json.Unmarshal(raw, &prefs); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		s.state.SetPreferredNetworks(prefs)

	case constants.StorageKeyWalletAccounts:
		var accounts []types.WalletAccount
		if raw != nil {
			if err := json.Unmarshal(raw, &accounts); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		s.state.SetAccountsList(accounts)

	case constants.StorageKeyActiveAccountID:
		var id *string
		if raw != nil {
			if err := json.Unmarshal(raw, &id); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		if id == nil {
			s.state.SetActiveAccount(nil)
		} else if !s.state.SetActiveAccountByID(*id) {
			s.log.Warn("External active account not found", zap.String("account_id", *id))
		}

	case constants.StorageKeyCustomNetworks:
		var nets []network.CustomNetwork
		if raw != nil {
			if err := json.Unmarshal(raw, &nets); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		s.state.SetCustomNetworks(nets)

	case constants.StorageKeyTheme:
		theme := def.Theme
		if raw != nil {
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			parsed, err := types.ParseTheme(v)
			if err != nil {
				return err
			}
			theme = parsed
		}
		s.state.SetTheme(theme)

	case constants.StorageKeyWalletLocked:
		locked, err := decodeBool(raw, def.WalletLocked)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.state.SetWalletLocked(locked)

	case constants.StorageKeyGasSponsorship:
		enabled, err := decodeBool(raw, def.GasSponsorshipEnabled)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.state.SetGasSponsorshipEnabled(enabled)

	default:
		return fmt.Errorf("untracked storage key %q", key)
	}
	return nil
}

func decodeBool(raw []byte, def bool) (bool, error) {
	if raw == nil {
		return def, nil
	}
	var v bool
	err := json.Unmarshal(raw, &v)
	return v, err
}

// applyNetwork resolves id the same way hydration does and selects it.
func (s *Synchronizer) applyNetwork(id int64) {
	st := s.state.Get()
	if st.SelectedNetwork.ChainID() == id {
		return
	}
	n, ok := s.reg.Resolve(id, st.CustomNetworks)
	if !ok || !s.networkAllowed(n) {
		s.log.Warn("External network did not resolve, using default", zap.Int64("chain_id", id))
		n = s.reg.DefaultFor(st.NetworkType)
	}
	s.state.SetSelectedNetwork(n)
}

// HandleNetworkChanged applies a network switch signalled by another execution
// context. It is a no-op for the network this synchronizer last set.
func (s *Synchronizer) HandleNetworkChanged(_ context.Context, chainID int64) bool {
	s.mu.Lock()
	redundant := chainID == s.lastNetworkID
	s.mu.Unlock()
	if redundant {
		return false
	}

	s.applyNetwork(chainID)
	s.state.RefreshBalances()
	return true
}

// LastNetworkID is the chain id most recently persisted or applied.
func (s *Synchronizer) LastNetworkID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNetworkID
}
