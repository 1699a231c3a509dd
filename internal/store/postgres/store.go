// Package postgres implements the pipeline's persistence ports on
// PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// lookupBatch bounds the size of ANY($1) arrays.
const lookupBatch = 1000

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx, so the same
// query code runs inside and outside transactions.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements core.Store and the sync repositories.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open creates a pool and checks the connection.
func Open(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

/* ----------------------------------------
	Reads
---------------------------------------- */

const eventColumns = `id, name, ticketing_ref, auto_sync, last_sync_at`

func scanEvent(row pgx.Row) (core.Event, error) {
	var (
		e    core.Event
		ref  pgtype.Text
		sync pgtype.Timestamptz
	)
	if err := row.Scan(&e.ID, &e.Name, &ref, &e.AutoSync, &sync); err != nil {
		return core.Event{}, err
	}
	e.TicketingRef = ref.String
	e.LastSyncAt = fromPgTime(sync)
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id uuid.UUID) (core.Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Event{}, core.ErrEventNotFound
	}
	if err != nil {
		return core.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListAutoSyncEvents returns the events flagged for scheduled sync that are
// linked to a ticketing event.
func (s *Store) ListAutoSyncEvents(ctx context.Context) ([]core.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE auto_sync AND coalesce(ticketing_ref, '') <> ''
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list auto-sync events: %w", err)
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListSlots(ctx context.Context, eventID uuid.UUID) ([]core.Slot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, starts_at, ends_at, description, max_capacity, external_session_id
		FROM slots WHERE event_id = $1 ORDER BY starts_at, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []core.Slot
	for rows.Next() {
		var (
			sl  core.Slot
			ext pgtype.Text
		)
		if err := rows.Scan(&sl.ID, &sl.EventID, &sl.StartsAt, &sl.EndsAt, &sl.Description, &sl.MaxCapacity, &ext); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		sl.ExternalSessionID = ext.String
		out = append(out, sl)
	}
	return out, rows.Err()
}

const accountColumns = `id, email, first_name, last_name, phone, address, postal_code, city,
	is_active, is_verified, invitation_token, invitation_expires_at, created_at`

func scanAccount(row pgx.Row) (core.Account, error) {
	var (
		a                               core.Account
		phone, address, postal, city, t pgtype.Text
		expires                         pgtype.Timestamptz
	)
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &phone, &address, &postal, &city,
		&a.IsActive, &a.IsVerified, &t, &expires, &a.CreatedAt)
	if err != nil {
		return core.Account{}, err
	}
	a.Phone, a.Address, a.PostalCode, a.City = phone.String, address.String, postal.String, city.String
	a.InvitationToken = t.String
	a.InvitationExpiresAt = fromPgTime(expires)
	return a, nil
}

// FindAccountsByEmail looks emails up in batches. Keys of the result are
// the stored (lowercase) emails.
func (s *Store) FindAccountsByEmail(ctx context.Context, emails []string) (map[string]core.Account, error) {
	out := make(map[string]core.Account, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = core.NormalizeEmail(e); e != "" {
			normalized = append(normalized, e)
		}
	}

	for _, batch := range chunk(normalized, lookupBatch) {
		rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ANY($1)`, batch)
		if err != nil {
			return nil, fmt.Errorf("find accounts: %w", err)
		}
		for rows.Next() {
			a, err := scanAccount(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan account: %w", err)
			}
			out[a.Email] = a
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find accounts: %w", err)
		}
	}
	return out, nil
}

func (s *Store) RegisteredAccounts(ctx context.Context, eventID uuid.UUID, accountIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	for _, batch := range chunk(uuidStrings(accountIDs), lookupBatch) {
		rows, err := s.pool.Query(ctx, `
			SELECT account_id FROM registrations
			WHERE event_id = $1 AND account_id = ANY($2::uuid[])`, eventID, batch)
		if err != nil {
			return nil, fmt.Errorf("registered accounts: %w", err)
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan registration: %w", err)
			}
			out[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("registered accounts: %w", err)
		}
	}
	return out, nil
}

func (s *Store) CountRegistrationsBySlot(ctx context.Context, eventID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT slot_id, count(*) FROM registrations
		WHERE event_id = $1 AND slot_id IS NOT NULL
		GROUP BY slot_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id uuid.UUID
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[id] = int(n)
	}
	return out, rows.Err()
}

const importLogColumns = `id, event_id, imported_by, source_descriptor,
	total, imported, linked_existing, created_new,
	skipped_invalid, skipped_unpaid, skipped_duplicate, skipped_already_registered,
	started_at, completed_at`

func scanImportLog(row pgx.Row) (core.ImportLog, error) {
	var (
		l         core.ImportLog
		t         = &l.Totals
		completed pgtype.Timestamptz
	)
	err := row.Scan(&l.ID, &l.EventID, &l.ImportedBy, &l.SourceDescriptor,
		&t.Total, &t.Imported, &t.LinkedExisting, &t.CreatedNew,
		&t.SkippedInvalid, &t.SkippedUnpaid, &t.SkippedDuplicate, &t.SkippedAlreadyRegistered,
		&l.StartedAt, &completed)
	if err != nil {
		return core.ImportLog{}, err
	}
	l.CompletedAt = fromPgTime(completed)
	return l, nil
}

func (s *Store) ListImportLogs(ctx context.Context, eventID uuid.UUID) ([]core.ImportLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+importLogColumns+` FROM import_logs
		WHERE event_id = $1 ORDER BY started_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}
	defer rows.Close()

	var out []core.ImportLog
	for rows.Next() {
		l, err := scanImportLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) GetImportLog(ctx context.Context, id uuid.UUID) (core.ImportLog, error) {
	l, err := scanImportLog(s.pool.QueryRow(ctx, `SELECT `+importLogColumns+` FROM import_logs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ImportLog{}, core.ErrImportLogNotFound
	}
	if err != nil {
		return core.ImportLog{}, fmt.Errorf("get import log: %w", err)
	}
	return l, nil
}

// LoadTicketingCredentials returns the stored ciphertext, or "" when none.
func (s *Store) LoadTicketingCredentials(ctx context.Context) (string, error) {
	var ciphertext string
	err := s.pool.QueryRow(ctx, `SELECT ciphertext FROM ticketing_credentials WHERE id = 1`).Scan(&ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load ticketing credentials: %w", err)
	}
	return ciphertext, nil
}

func (s *Store) SaveTicketingCredentials(ctx context.Context, ciphertext string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ticketing_credentials (id, ciphertext, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET ciphertext = EXCLUDED.ciphertext, updated_at = EXCLUDED.updated_at`,
		ciphertext)
	if err != nil {
		return fmt.Errorf("save ticketing credentials: %w", err)
	}
	return nil
}

/* ----------------------------------------
	Transactions
---------------------------------------- */

// InTx runs fn in a transaction, committed when fn returns nil and rolled
// back otherwise, including when fn panics.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) (err error) {
	pgxTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = pgxTx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = pgxTx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(&tx{db: pgxTx}); err != nil {
		return err
	}
	if err = pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type tx struct {
	db DBTX
}

func (t *tx) CreateImportLog(ctx context.Context, l core.ImportLog) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO import_logs (id, event_id, imported_by, source_descriptor, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.EventID, l.ImportedBy, l.SourceDescriptor, l.StartedAt)
	if isForeignKeyViolation(err) {
		return core.ErrEventNotFound
	}
	return err
}

func (t *tx) FinalizeImportLog(ctx context.Context, id uuid.UUID, totals core.ImportTotals, completedAt time.Time) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE import_logs SET
			total = $2, imported = $3, linked_existing = $4, created_new = $5,
			skipped_invalid = $6, skipped_unpaid = $7, skipped_duplicate = $8,
			skipped_already_registered = $9, completed_at = $10
		WHERE id = $1`,
		id, totals.Total, totals.Imported, totals.LinkedExisting, totals.CreatedNew,
		totals.SkippedInvalid, totals.SkippedUnpaid, totals.SkippedDuplicate,
		totals.SkippedAlreadyRegistered, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrImportLogNotFound
	}
	return nil
}

// CreateAccount inserts acc, or returns the account already holding its
// email. The unique constraint decides, so concurrent imports creating the
// same depositor end up sharing one account.
func (t *tx) CreateAccount(ctx context.Context, acc core.Account) (core.Account, bool, error) {
	acc.Email = core.NormalizeEmail(acc.Email)
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}

	tag, err := t.db.Exec(ctx, `
		INSERT INTO accounts (id, email, first_name, last_name, phone, address, postal_code, city,
			is_active, is_verified, invitation_token, invitation_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (email) DO NOTHING`,
		acc.ID, acc.Email, acc.FirstName, acc.LastName,
		ToPgText(acc.Phone), ToPgText(acc.Address), ToPgText(acc.PostalCode), ToPgText(acc.City),
		acc.IsActive, acc.IsVerified, ToPgText(acc.InvitationToken), toPgTime(acc.InvitationExpiresAt), acc.CreatedAt)
	if err != nil {
		return core.Account{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return acc, true, nil
	}

	existing, err := scanAccount(t.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, acc.Email))
	if err != nil {
		return core.Account{}, false, fmt.Errorf("load existing account: %w", err)
	}
	return existing, false, nil
}

// BackfillContact fills blank contact fields only.
func (t *tx) BackfillContact(ctx context.Context, accountID uuid.UUID, c core.ContactDetails) error {
	if c.Empty() {
		return nil
	}
	_, err := t.db.Exec(ctx, `
		UPDATE accounts SET
			phone       = coalesce(nullif(phone, ''), $2),
			address     = coalesce(nullif(address, ''), $3),
			postal_code = coalesce(nullif(postal_code, ''), $4),
			city        = coalesce(nullif(city, ''), $5)
		WHERE id = $1`,
		accountID, ToPgText(c.Phone), ToPgText(c.Address), ToPgText(c.PostalCode), ToPgText(c.City))
	return err
}

func (t *tx) CreateRegistration(ctx context.Context, r core.Registration) (bool, error) {
	tag, err := t.db.Exec(ctx, `
		INSERT INTO registrations (event_id, account_id, slot_id, list_category,
			external_order_ref, external_session_label, external_tariff_label, imported_at, import_log_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id, account_id) DO NOTHING`,
		r.EventID, r.AccountID, toPgUUID(r.SlotID), string(r.ListCategory),
		ToPgText(r.ExternalOrderRef), ToPgText(r.ExternalSessionLabel), ToPgText(r.ExternalTariffLabel),
		toPgTime(r.ImportedAt), toPgUUID(r.ImportLogID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *tx) AdvanceWatermark(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	tag, err := t.db.Exec(ctx, `UPDATE events SET last_sync_at = $2 WHERE id = $1`, eventID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrEventNotFound
	}
	return nil
}

/* ----------------------------------------
	Pgx Helpers
---------------------------------------- */

// ToPgText maps blank strings to NULL.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func fromPgTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func toPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
