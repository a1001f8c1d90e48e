package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"logwatch/internal/model"
	"logwatch/internal/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS event_logs (
	block_hash   TEXT    NOT NULL,
	log_index    BIGINT  NOT NULL,
	block_number NUMERIC NOT NULL,
	tx_hash      TEXT,
	tx_index     BIGINT,
	address      TEXT    NOT NULL,
	topics       TEXT[]  NOT NULL,
	data         BYTEA   NOT NULL,
	event_name   TEXT,
	args         JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (block_hash, log_index)
);
CREATE INDEX IF NOT EXISTS event_logs_address_block ON event_logs (address, block_number);
CREATE TABLE IF NOT EXISTS watch_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for decoded logs and backfill progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutLogBatch inserts mined logs and deletes logs the node reports as
// removed by a reorg. Pending logs have no stable identity and are skipped.
func (s *Store) PutLogBatch(ctx context.Context, logs []model.Log) error {
	batch := &pgx.Batch{}
	for _, log := range logs {
		if log.Pending() || log.BlockHash == nil || log.LogIndex == nil {
			continue
		}
		if log.Removed {
			batch.Queue(`DELETE FROM event_logs WHERE block_hash = $1 AND log_index = $2`,
				log.BlockHash.Hex(), int64(*log.LogIndex))
			continue
		}

		row, err := newLogRow(log)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO event_logs (
				block_hash, log_index, block_number, tx_hash, tx_index, address, topics, data, event_name, args
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (block_hash, log_index) DO NOTHING
		`,
			row.blockHash,
			row.logIndex,
			row.blockNumber,
			row.txHash,
			row.txIndex,
			row.address,
			row.topics,
			log.Data,
			row.eventName,
			row.args,
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store log: %w", err)
		}
	}
	return nil
}

type logRow struct {
	blockHash   string
	logIndex    int64
	blockNumber pgtype.Numeric
	txHash      *string
	txIndex     *int64
	address     string
	topics      []string
	eventName   *string
	args        *string
}

func newLogRow(log model.Log) (logRow, error) {
	row := logRow{
		blockHash:   log.BlockHash.Hex(),
		logIndex:    int64(*log.LogIndex),
		blockNumber: pgtype.Numeric{Int: new(big.Int).Set(log.BlockNumber), Valid: true},
		address:     wire.FromAddress(log.Address),
		topics:      make([]string, 0, len(log.Topics)),
	}
	for _, topic := range log.Topics {
		row.topics = append(row.topics, topic.Hex())
	}
	if log.TransactionHash != nil {
		h := log.TransactionHash.Hex()
		row.txHash = &h
	}
	if log.TransactionIndex != nil {
		i := int64(*log.TransactionIndex)
		row.txIndex = &i
	}
	if log.EventName != "" {
		name := log.EventName
		row.eventName = &name
		args, err := json.Marshal(model.JSONValue(log.Args))
		if err != nil {
			return logRow{}, fmt.Errorf("marshal args: %w", err)
		}
		encoded := string(args)
		row.args = &encoded
	}
	return row, nil
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM watch_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watch_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}

// Checkpoint stores backfill progress in watch_state under one name.
type Checkpoint struct {
	store *Store
	name  string
}

func (s *Store) Checkpoint(name string) *Checkpoint {
	return &Checkpoint{store: s, name: name}
}

func (c *Checkpoint) Load(ctx context.Context) (uint64, bool, error) {
	return c.store.LoadState(ctx, c.name)
}

func (c *Checkpoint) Save(ctx context.Context, lastProcessed uint64) error {
	return c.store.SaveState(ctx, c.name, lastProcessed)
}
