package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/seqtrack-io/seqtrack/internal/config"
	"github.com/seqtrack-io/seqtrack/internal/endpoints"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// Sentinel errors for tracking store operations.
var (
	// ErrStoreClosed is returned when a scope is requested from a closed store.
	ErrStoreClosed = errors.New("tracking store is closed")

	// ErrScopeDone is returned when a finished scope is used again.
	ErrScopeDone = errors.New("scope already committed or rolled back")

	// TrackingStore implements tracking.Store (Postgres backend).
	_ tracking.Store = (*TrackingStore)(nil)

	// Scope implements tracking.Scope. Resolution methods live in
	// resolution.go, loaders in loaders.go, mutations in mutations.go
	// (same package, same type).
	_ tracking.Scope = (*Scope)(nil)
)

// Postgres error codes mapped to ConstraintViolation.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type (
	// TrackingStore is the PostgreSQL implementation of tracking.Store.
	// Every scope it hands out is one database transaction; get-or-create
	// resolution inside a scope is deterministic, and the schema's unique
	// constraints are the final arbiter under concurrent scopes.
	TrackingStore struct {
		conn      *Connection
		logger    *slog.Logger
		validator *tracking.Validator
		endpoints *endpoints.Config

		mu           sync.Mutex
		defaultScope *Scope
		closed       bool
	}

	// TrackingStoreOption configures optional TrackingStore behavior.
	TrackingStoreOption func(*TrackingStore)

	// Scope is one transaction against the tracking schema. Records created
	// by resolution are inserted inside the transaction and become durable
	// on Commit; ownership conflicts accumulate on the scope.
	Scope struct {
		tx        *sql.Tx
		logger    *slog.Logger
		validator *tracking.Validator
		endpoints *endpoints.Config
		conflicts []*tracking.OwnershipConflict
		done      bool
	}
)

// WithEndpointAliases sets the endpoint alias map applied when deriving
// location endpoints from uri schemes.
func WithEndpointAliases(cfg *endpoints.Config) TrackingStoreOption {
	return func(s *TrackingStore) {
		s.endpoints = cfg
	}
}

// WithLogger overrides the default JSON logger.
func WithLogger(logger *slog.Logger) TrackingStoreOption {
	return func(s *TrackingStore) {
		s.logger = logger
	}
}

// NewTrackingStore creates a PostgreSQL-backed tracking store on an open
// connection. The connection is managed externally; Close does not close it.
func NewTrackingStore(conn *Connection, opts ...TrackingStoreOption) (*TrackingStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	store := &TrackingStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		validator: tracking.NewValidator(),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// HealthCheck verifies the underlying connection is healthy.
func (s *TrackingStore) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConnection
	}

	return s.conn.HealthCheck(ctx)
}

// Begin opens a new scope backed by a fresh transaction.
func (s *TrackingStore) Begin(ctx context.Context) (tracking.Scope, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &Scope{
		tx:        tx,
		logger:    s.logger,
		validator: s.validator,
		endpoints: s.endpoints,
	}, nil
}

// WithScope opens a scope, runs fn, and commits when fn returns nil.
// On error or panic the scope is rolled back.
func (s *TrackingStore) WithScope(ctx context.Context, fn func(tracking.Scope) error) (err error) {
	scope, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = scope.Rollback()
			panic(p)
		}

		if err != nil {
			_ = scope.Rollback()
		}
	}()

	if err = fn(scope); err != nil {
		return err
	}

	return scope.Commit()
}

// DefaultScope returns the process-default scope, creating it lazily on
// first use. It stays open until Close; callers that can manage their own
// scope should prefer Begin or WithScope.
func (s *TrackingStore) DefaultScope(ctx context.Context) (tracking.Scope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if s.defaultScope != nil && !s.defaultScope.done {
		return s.defaultScope, nil
	}

	tx, err := s.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin default scope: %w", err)
	}

	s.defaultScope = &Scope{
		tx:        tx,
		logger:    s.logger,
		validator: s.validator,
		endpoints: s.endpoints,
	}

	return s.defaultScope, nil
}

// Close rolls back a still-open default scope. It does not close the
// database connection, which is managed externally.
func (s *TrackingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	if s.defaultScope != nil && !s.defaultScope.done {
		if err := s.defaultScope.Rollback(); err != nil {
			return fmt.Errorf("failed to roll back default scope: %w", err)
		}
	}

	return nil
}

// Commit makes every record resolved or created in this scope durable.
// Constraint failures deferred to commit surface as ConstraintViolation.
func (s *Scope) Commit() error {
	if s.done {
		return ErrScopeDone
	}

	s.done = true

	if err := s.tx.Commit(); err != nil {
		return constraintErr("", err)
	}

	return nil
}

// Rollback discards the scope.
func (s *Scope) Rollback() error {
	if s.done {
		return ErrScopeDone
	}

	s.done = true

	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	return nil
}

// Conflicts returns the ownership conflicts recorded in this scope, in
// occurrence order.
func (s *Scope) Conflicts() []*tracking.OwnershipConflict {
	out := make([]*tracking.OwnershipConflict, len(s.conflicts))
	copy(out, s.conflicts)

	return out
}

func (s *Scope) recordConflict(c *tracking.OwnershipConflict) {
	s.conflicts = append(s.conflicts, c)
	s.logger.Error("ownership conflict: existing record wins",
		slog.String("table", c.Table),
		slog.String("name", c.Name),
		slog.String("parent_table", c.ParentTable),
		slog.Int64("existing_parent_id", c.ExistingParentID),
		slog.Int64("requested_parent_id", c.RequestedParentID),
	)
}

// constraintErr maps Postgres constraint failures onto the domain error
// taxonomy; anything else passes through wrapped.
func constraintErr(table string, err error) error {
	var pqErr *pq.Error

	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
			if table == "" {
				table = pqErr.Table
			}

			return &tracking.ConstraintViolation{
				Table:      table,
				Constraint: pqErr.Constraint,
				Err:        err,
			}
		}
	}

	return err
}

// envelopeCols is the shared column list every table starts with. Scan order
// must match envScanArgs.
const envelopeCols = "id, deprecated, deleted, creation, modification, extra_metadata, ext_id, ext_src"

// envelopeRow buffers the nullable envelope columns during a scan.
type envelopeRow struct {
	modification sql.NullTime
	metadata     []byte
	extID        sql.NullInt64
	extSrc       sql.NullString
}

func envScanArgs(e *tracking.Envelope, row *envelopeRow) []any {
	return []any{
		&e.ID,
		&e.Deprecated,
		&e.Deleted,
		&e.Creation,
		&row.modification,
		&row.metadata,
		&row.extID,
		&row.extSrc,
	}
}

func (r *envelopeRow) apply(e *tracking.Envelope) error {
	if r.modification.Valid {
		t := r.modification.Time
		e.Modification = &t
	}

	if len(r.metadata) > 0 {
		if err := json.Unmarshal(r.metadata, &e.ExtraMetadata); err != nil {
			return fmt.Errorf("failed to decode extra_metadata: %w", err)
		}
	}

	if r.extID.Valid {
		v := r.extID.Int64
		e.ExtID = &v
	}

	if r.extSrc.Valid {
		v := r.extSrc.String
		e.ExtSrc = &v
	}

	return nil
}

// metadataParam renders a metadata map as a jsonb parameter, nil for empty.
func metadataParam(m tracking.Metadata) (any, error) {
	if len(m) == 0 {
		return nil, nil //nolint:nilnil // nil is the NULL parameter
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	return data, nil
}

func scanMetadata(data []byte) (tracking.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var m tracking.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	return m, nil
}

// Nullable parameter and scan helpers.

func nullStr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: *v, Valid: true}
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}

	s := v.String

	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}

	t := v.Time

	return &t
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}

	i := v.Int64

	return &i
}

// queryIDs runs a single-column id query and returns the ids in query order.
func (s *Scope) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("id query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("id scan failed: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("id iteration failed: %w", err)
	}

	return ids, nil
}
