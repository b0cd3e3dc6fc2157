package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curvepool/internal/domain"
	"curvepool/internal/storage"
)

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PoolStore = (*PoolStore)(nil)

const poolColumns = `
	creator_identity, symbol, name, icon_ref, project_url_ref, decimals, asset_type,
	total_supply, k, fee_rate_bps,
	backing_ratio_bps, withdrawal_limit_bps, withdrawal_cooldown_seconds,
	graduation_threshold, graduation_target,
	reserve, circulating_supply, last_withdrawal_timestamp,
	is_graduated, is_emergency, oracle_price, last_oracle_update,
	created_at, version
`

// Insert adds a new pool. Returns ErrDuplicateKey if the
// (creator, symbol) pair already exists.
func (s *PoolStore) Insert(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.CreatorIdentity == "" || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pools (` + poolColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	_, err := s.pool.Exec(ctx, query,
		p.CreatorIdentity,
		p.Symbol,
		p.Name,
		p.IconRef,
		p.ProjectURLRef,
		int16(p.Decimals),
		p.AssetType,
		int64(p.TotalSupply),
		int64(p.K),
		int64(p.FeeRateBps),
		int64(p.BackingRatioBps),
		int64(p.WithdrawalLimitBps),
		int64(p.WithdrawalCooldownSeconds),
		int64(p.GraduationThreshold),
		p.GraduationTarget,
		int64(p.Reserve),
		int64(p.CirculatingSupply),
		p.LastWithdrawalTimestamp,
		p.IsGraduated,
		p.IsEmergency,
		int64(p.OraclePrice),
		p.LastOracleUpdate,
		p.CreatedAt,
		int64(p.Version),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// Get retrieves a pool. Returns ErrNotFound if it does not exist.
func (s *PoolStore) Get(ctx context.Context, creatorIdentity, symbol string) (*domain.Pool, error) {
	if creatorIdentity == "" || symbol == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + poolColumns + `
		FROM pools
		WHERE creator_identity = $1 AND symbol = $2
	`

	row := s.pool.QueryRow(ctx, query, creatorIdentity, symbol)
	p, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	return p, nil
}

// Update persists a mutated pool under optimistic versioning.
func (s *PoolStore) Update(ctx context.Context, p *domain.Pool) error {
	if p == nil || p.CreatorIdentity == "" || p.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE pools SET
			reserve = $3,
			circulating_supply = $4,
			last_withdrawal_timestamp = $5,
			is_graduated = $6,
			is_emergency = $7,
			oracle_price = $8,
			last_oracle_update = $9,
			version = version + 1
		WHERE creator_identity = $1 AND symbol = $2 AND version = $10
	`

	tag, err := s.pool.Exec(ctx, query,
		p.CreatorIdentity,
		p.Symbol,
		int64(p.Reserve),
		int64(p.CirculatingSupply),
		p.LastWithdrawalTimestamp,
		p.IsGraduated,
		p.IsEmergency,
		int64(p.OraclePrice),
		p.LastOracleUpdate,
		int64(p.Version),
	)
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing pool from a stale version.
		if _, err := s.Get(ctx, p.CreatorIdentity, p.Symbol); err != nil {
			return err
		}
		return storage.ErrVersionConflict
	}

	p.Version++
	return nil
}

// List retrieves all pools ordered by creation time ascending.
func (s *PoolStore) List(ctx context.Context) ([]*domain.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM pools
		ORDER BY created_at ASC, creator_identity ASC, symbol ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	defer rows.Close()

	var result []*domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return result, nil
}

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	var decimals int16
	var totalSupply, k, feeRateBps int64
	var backingBps, limitBps, cooldown int64
	var threshold, reserve, circulating, oracle int64
	var version int64

	err := row.Scan(
		&p.CreatorIdentity,
		&p.Symbol,
		&p.Name,
		&p.IconRef,
		&p.ProjectURLRef,
		&decimals,
		&p.AssetType,
		&totalSupply,
		&k,
		&feeRateBps,
		&backingBps,
		&limitBps,
		&cooldown,
		&threshold,
		&p.GraduationTarget,
		&reserve,
		&circulating,
		&p.LastWithdrawalTimestamp,
		&p.IsGraduated,
		&p.IsEmergency,
		&oracle,
		&p.LastOracleUpdate,
		&p.CreatedAt,
		&version,
	)
	if err != nil {
		return nil, err
	}

	p.Decimals = uint8(decimals)
	p.TotalSupply = uint64(totalSupply)
	p.K = uint64(k)
	p.FeeRateBps = uint64(feeRateBps)
	p.BackingRatioBps = uint64(backingBps)
	p.WithdrawalLimitBps = uint64(limitBps)
	p.WithdrawalCooldownSeconds = uint64(cooldown)
	p.GraduationThreshold = uint64(threshold)
	p.Reserve = uint64(reserve)
	p.CirculatingSupply = uint64(circulating)
	p.OraclePrice = uint64(oracle)
	p.Version = uint64(version)
	return &p, nil
}
