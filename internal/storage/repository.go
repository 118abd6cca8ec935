package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPriceUpdateSQL = `INSERT INTO price_updates (
        pair_id,
        value,
        decimal_exp,
        observed_at,
        round,
        root
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listRecentUpdatesSQL = `SELECT
        id,
        pair_id,
        value,
        decimal_exp,
        observed_at,
        round,
        root,
        created_at
    FROM price_updates
    WHERE pair_id = $1
    ORDER BY round DESC
    LIMIT $2;`

	listUpdatesBetweenSQL = `SELECT
        id,
        pair_id,
        value,
        decimal_exp,
        observed_at,
        round,
        root,
        created_at
    FROM price_updates
    WHERE pair_id = $1
      AND created_at >= $2
      AND created_at < $3
    ORDER BY round;`

	countUpdatesSQL = `SELECT COUNT(*) FROM price_updates;`

	upsertCommitteeKeySQL = `INSERT INTO committee_keys (
        committee_id,
        public_key,
        active
    ) VALUES (
        $1,$2,TRUE
    )
    ON CONFLICT (committee_id) DO UPDATE
    SET public_key = EXCLUDED.public_key,
        active     = TRUE,
        updated_at = now();`

	deactivateCommitteeKeySQL = `UPDATE committee_keys
    SET active = FALSE, updated_at = now()
    WHERE committee_id = $1;`

	listCommitteeKeysSQL = `SELECT
        committee_id,
        public_key,
        active,
        updated_at
    FROM committee_keys
    ORDER BY committee_id;`

	insertTransitionSQL = `INSERT INTO hcc_transitions (
        pair_id,
        from_state,
        to_state,
        value,
        round
    ) VALUES (
        $1,$2,$3,$4,$5
    ) RETURNING id, pair_id, from_state, to_state, value, round, created_at;`

	listRecentTransitionsSQL = `SELECT
        id,
        pair_id,
        from_state,
        to_state,
        value,
        round,
        created_at
    FROM hcc_transitions
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceUpdateStore defines operations for price-update auditing.
type PriceUpdateStore interface {
	InsertPriceUpdate(ctx context.Context, rec PriceUpdateRecord) error
	ListRecentUpdates(ctx context.Context, pairID uint32, limit int) ([]PriceUpdateRecord, error)
	ListUpdatesBetween(ctx context.Context, pairID uint32, from, to time.Time) ([]PriceUpdateRecord, error)
	CountUpdates(ctx context.Context) (int64, error)
}

// CommitteeKeyStore defines operations for committee key auditing.
type CommitteeKeyStore interface {
	UpsertCommitteeKey(ctx context.Context, committeeID uint64, publicKey string) error
	DeactivateCommitteeKey(ctx context.Context, committeeID uint64) error
	ListCommitteeKeys(ctx context.Context) ([]CommitteeKeyRecord, error)
}

// TransitionStore defines operations for consistency-transition auditing.
type TransitionStore interface {
	InsertTransition(ctx context.Context, rec TransitionRecord) (TransitionRecord, error)
	ListRecentTransitions(ctx context.Context, limit int) ([]TransitionRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the audit tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertPriceUpdate persists one accepted price upsert.
func (s *Store) InsertPriceUpdate(ctx context.Context, rec PriceUpdateRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	observed := time.UnixMilli(int64(rec.Timestamp)).UTC()
	if _, execErr := pool.Exec(ctx, insertPriceUpdateSQL,
		int64(rec.PairID),
		rec.Value.String(),
		int32(rec.Decimal),
		observed,
		int64(rec.Round),
		rec.Root,
	); execErr != nil {
		return fmt.Errorf("insert price update: %w", execErr)
	}
	return nil
}

// ListRecentUpdates lists the newest accepted updates for a pair.
func (s *Store) ListRecentUpdates(ctx context.Context, pairID uint32, limit int) ([]PriceUpdateRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentUpdatesSQL, int64(pairID), limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent updates: %w", queryErr)
	}
	defer rows.Close()

	return scanPriceUpdates(rows, limit)
}

// ListUpdatesBetween lists accepted updates for a pair within a window.
func (s *Store) ListUpdatesBetween(ctx context.Context, pairID uint32, from, to time.Time) ([]PriceUpdateRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUpdatesBetweenSQL, int64(pairID), from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list updates between: %w", queryErr)
	}
	defer rows.Close()

	return scanPriceUpdates(rows, 0)
}

// CountUpdates counts persisted updates.
func (s *Store) CountUpdates(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countUpdatesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count updates: %w", scanErr)
	}
	return count, nil
}

// UpsertCommitteeKey records a key registration.
func (s *Store) UpsertCommitteeKey(ctx context.Context, committeeID uint64, publicKey string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertCommitteeKeySQL, int64(committeeID), publicKey); execErr != nil {
		return fmt.Errorf("upsert committee key: %w", execErr)
	}
	return nil
}

// DeactivateCommitteeKey records a key removal.
func (s *Store) DeactivateCommitteeKey(ctx context.Context, committeeID uint64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deactivateCommitteeKeySQL, int64(committeeID)); execErr != nil {
		return fmt.Errorf("deactivate committee key: %w", execErr)
	}
	return nil
}

// ListCommitteeKeys lists recorded committee keys.
func (s *Store) ListCommitteeKeys(ctx context.Context) ([]CommitteeKeyRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCommitteeKeysSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list committee keys: %w", queryErr)
	}
	defer rows.Close()

	keys := make([]CommitteeKeyRecord, 0)
	for rows.Next() {
		var (
			rec         CommitteeKeyRecord
			committeeID int64
		)
		if err := rows.Scan(&committeeID, &rec.PublicKey, &rec.Active, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.CommitteeID = uint64(committeeID)
		keys = append(keys, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return keys, nil
}

// InsertTransition persists a consistency-state transition.
func (s *Store) InsertTransition(ctx context.Context, rec TransitionRecord) (TransitionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return TransitionRecord{}, err
	}

	row := pool.QueryRow(ctx, insertTransitionSQL,
		int64(rec.PairID),
		rec.FromState,
		rec.ToState,
		rec.Value.String(),
		int64(rec.Round),
	)

	var (
		out      TransitionRecord
		pairID   int64
		round    int64
		valueStr string
	)
	if scanErr := row.Scan(&out.ID, &pairID, &out.FromState, &out.ToState, &valueStr, &round, &out.CreatedAt); scanErr != nil {
		return TransitionRecord{}, fmt.Errorf("insert transition: %w", scanErr)
	}
	out.PairID = uint32(pairID)
	out.Round = uint64(round)

	var convErr error
	out.Value, convErr = decimal.NewFromString(valueStr)
	if convErr != nil {
		return TransitionRecord{}, fmt.Errorf("parse transition value: %w", convErr)
	}
	return out, nil
}

// ListRecentTransitions lists the most recent transitions.
func (s *Store) ListRecentTransitions(ctx context.Context, limit int) ([]TransitionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentTransitionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent transitions: %w", queryErr)
	}
	defer rows.Close()

	out := make([]TransitionRecord, 0, limit)
	for rows.Next() {
		var (
			rec      TransitionRecord
			pairID   int64
			round    int64
			valueStr string
		)
		if err := rows.Scan(&rec.ID, &pairID, &rec.FromState, &rec.ToState, &valueStr, &round, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.PairID = uint32(pairID)
		rec.Round = uint64(round)

		var convErr error
		rec.Value, convErr = decimal.NewFromString(valueStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse transition value: %w", convErr)
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanPriceUpdates(rows pgx.Rows, capacityHint int) ([]PriceUpdateRecord, error) {
	updates := make([]PriceUpdateRecord, 0, capacityHint)
	for rows.Next() {
		var (
			rec        PriceUpdateRecord
			pairID     int64
			decimalExp int32
			observed   time.Time
			round      int64
			valueStr   string
		)
		if err := rows.Scan(&rec.ID, &pairID, &valueStr, &decimalExp, &observed, &round, &rec.Root, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.PairID = uint32(pairID)
		rec.Decimal = uint16(decimalExp)
		rec.Timestamp = uint64(observed.UnixMilli())
		rec.Round = uint64(round)

		var convErr error
		rec.Value, convErr = decimal.NewFromString(valueStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse update value: %w", convErr)
		}
		updates = append(updates, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return updates, nil
}
