// Package service wires the verification pipeline: decode, committee
// signature checks gated by the replay guard, Merkle multiproof checks, then
// atomically committed price upserts and consistency updates.
package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"oracle-pricefeed/internal/committee"
	"oracle-pricefeed/internal/hcc"
	"oracle-pricefeed/internal/oracle"
	"oracle-pricefeed/internal/pricestore"
	"oracle-pricefeed/internal/replay"
)

// Options tune the engine's bounded structures.
type Options struct {
	ReplayWindow   int
	RoundTolerance uint64
	HCCWindowSize  int
	HCCBandWidth   uint64
	HCCPairs       []uint32
}

// Engine is the trust boundary between submitted payloads and every consumer
// that reads prices. A single RWMutex serialises verification calls; readers
// share the read side.
type Engine struct {
	mu       sync.RWMutex
	registry *committee.Registry
	guard    *replay.Guard
	store    *pricestore.Store
	checker  *hcc.Checker
	auth     oracle.Authorizer
	clock    oracle.Clock
	notifier oracle.Notifier
	logger   zerolog.Logger
}

// NewEngine assembles an engine from its collaborators.
func NewEngine(opts Options, auth oracle.Authorizer, clock oracle.Clock, notifier oracle.Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		registry: committee.NewRegistry(logger),
		guard:    replay.NewGuard(opts.ReplayWindow),
		store:    pricestore.NewStore(opts.RoundTolerance),
		checker:  hcc.NewChecker(opts.HCCWindowSize, opts.HCCBandWidth, opts.HCCPairs),
		auth:     auth,
		clock:    clock,
		notifier: notifier,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// RegisterCommittee installs a committee public key. Governance gated.
func (e *Engine) RegisterCommittee(ctx context.Context, caller string, committeeID uint64, publicKey []byte) error {
	if !e.auth.IsAuthorized(caller) {
		return oracle.ErrUnauthorized
	}

	e.mu.Lock()
	err := e.registry.Register(committeeID, publicKey)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.emit(ctx, oracle.Event{Type: oracle.EventKeyAdded, CommitteeID: committeeID, PublicKey: append([]byte(nil), publicKey...)})
	return nil
}

// SeedCommittee installs a key at startup, before the engine is exposed to
// callers. Not governance gated and emits no event.
func (e *Engine) SeedCommittee(committeeID uint64, publicKey []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Register(committeeID, publicKey)
}

// RemoveCommittee deletes a committee public key. Governance gated.
func (e *Engine) RemoveCommittee(ctx context.Context, caller string, committeeID uint64) error {
	if !e.auth.IsAuthorized(caller) {
		return oracle.ErrUnauthorized
	}

	e.mu.Lock()
	err := e.registry.Remove(committeeID)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.emit(ctx, oracle.Event{Type: oracle.EventKeyRemoved, CommitteeID: committeeID})
	return nil
}

// CommitteePublicKey returns the registered key bytes for a committee.
func (e *Engine) CommitteePublicKey(committeeID uint64) ([oracle.PublicKeySize]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.PublicKey(committeeID)
}

// GetPrice returns the latest verified entry for a pair.
func (e *Engine) GetPrice(pairID uint32) (oracle.PriceEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(pairID)
}

// GetPrices returns latest entries for the requested pairs, omitting pairs
// without data.
func (e *Engine) GetPrices(pairIDs []uint32) []oracle.PriceEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.GetMany(pairIDs)
}

// GetDerivedPrice combines two stored pairs at 18 decimals.
func (e *Engine) GetDerivedPrice(pairA, pairB uint32, op pricestore.Operation) (pricestore.DerivedPrice, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Derived(pairA, pairB, op)
}

// HCCStates returns consistency classifications for the requested pairs,
// omitting pairs not opted in.
func (e *Engine) HCCStates(pairIDs []uint32) []oracle.PairState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checker.States(pairIDs)
}

func (e *Engine) emit(ctx context.Context, ev oracle.Event) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Warn().Err(err).Str("event", ev.Type.String()).Msg("notification dropped")
	}
}
