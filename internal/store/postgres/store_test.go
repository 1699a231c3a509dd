package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@db:5432/alpe?sslmode=disable", "pgx5://u:p@db:5432/alpe?sslmode=disable"},
		{"postgresql://u@db/alpe", "pgx5://u@db/alpe"},
		{"pgx5://u@db/alpe", "pgx5://u@db/alpe"},
	}
	for _, tt := range tests {
		if got := migrateURL(tt.in); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, chunk(items, 10))
	assert.Empty(t, chunk([]int{}, 3))
}

func TestToPgText(t *testing.T) {
	assert.False(t, ToPgText("   ").Valid)
	v := ToPgText(" Toulouse ")
	assert.True(t, v.Valid)
	assert.Equal(t, "Toulouse", v.String)
}

// testStore connects to TEST_DATABASE_URL, migrates and truncates. Tests
// using it are skipped when the variable is unset.
func testStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, MigrateUp(url))

	ctx := context.Background()
	pool, err := Open(ctx, PoolConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE registrations, import_logs, slots, accounts, events, ticketing_credentials`)
	require.NoError(t, err)
	return New(pool), pool
}

func seedEvent(t *testing.T, pool *pgxpool.Pool, autoSync bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO events (id, name, ticketing_ref, auto_sync) VALUES ($1, 'Bourse', 'evt-1', $2)`, id, autoSync)
	require.NoError(t, err)
	return id
}

func TestStore_CommitFlow(t *testing.T) {
	s, pool := testStore(t)
	ctx := context.Background()
	eventID := seedEvent(t, pool, true)

	slotID := uuid.New()
	start := time.Date(2026, 11, 14, 9, 0, 0, 0, time.UTC)
	_, err := pool.Exec(ctx, `INSERT INTO slots (id, event_id, starts_at, ends_at, description, max_capacity)
		VALUES ($1, $2, $3, $4, 'Samedi matin', 20)`, slotID, eventID, start, start.Add(2*time.Hour))
	require.NoError(t, err)

	logID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	var accountID uuid.UUID

	err = s.InTx(ctx, func(tx core.Tx) error {
		require.NoError(t, tx.CreateImportLog(ctx, core.ImportLog{
			ID: logID, EventID: eventID, ImportedBy: "benevole", SourceDescriptor: "file:inscrits.csv", StartedAt: now,
		}))

		acc, created, err := tx.CreateAccount(ctx, core.Account{
			ID: uuid.New(), Email: "Marie@Example.fr", FirstName: "Marie", LastName: "Dupont", City: "Plaisance",
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "marie@example.fr", acc.Email)
		accountID = acc.ID

		again, created, err := tx.CreateAccount(ctx, core.Account{ID: uuid.New(), Email: "marie@example.fr"})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, acc.ID, again.ID)

		require.NoError(t, tx.BackfillContact(ctx, acc.ID, core.ContactDetails{Phone: "0601020304", City: "Toulouse"}))

		ok, err := tx.CreateRegistration(ctx, core.Registration{
			EventID: eventID, AccountID: acc.ID, SlotID: &slotID, ListCategory: core.List1000,
			ImportedAt: &now, ImportLogID: &logID,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.CreateRegistration(ctx, core.Registration{EventID: eventID, AccountID: acc.ID, ListCategory: core.ListStandard})
		require.NoError(t, err)
		assert.False(t, ok, "second registration is ignored")

		require.NoError(t, tx.FinalizeImportLog(ctx, logID, core.ImportTotals{Total: 1, Imported: 1, CreatedNew: 1}, now))
		return tx.AdvanceWatermark(ctx, eventID, now)
	})
	require.NoError(t, err)

	accounts, err := s.FindAccountsByEmail(ctx, []string{" MARIE@example.fr", "nobody@example.fr"})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	acc := accounts["marie@example.fr"]
	assert.Equal(t, "0601020304", acc.Phone)
	assert.Equal(t, "Plaisance", acc.City, "filled fields are kept")

	registered, err := s.RegisteredAccounts(ctx, eventID, []uuid.UUID{accountID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]bool{accountID: true}, registered)

	counts, err := s.CountRegistrationsBySlot(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[slotID])

	event, err := s.GetEvent(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, event.LastSyncAt)
	assert.True(t, now.Equal(*event.LastSyncAt))

	logs, err := s.ListImportLogs(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].Totals.CreatedNew)
	require.NotNil(t, logs[0].CompletedAt)
}

func TestStore_InTxRollsBack(t *testing.T) {
	s, pool := testStore(t)
	ctx := context.Background()
	eventID := seedEvent(t, pool, false)

	err := s.InTx(ctx, func(tx core.Tx) error {
		if _, _, err := tx.CreateAccount(ctx, core.Account{ID: uuid.New(), Email: "paul@example.fr"}); err != nil {
			return err
		}
		return tx.AdvanceWatermark(ctx, uuid.New(), time.Now())
	})
	require.ErrorIs(t, err, core.ErrEventNotFound)

	accounts, err := s.FindAccountsByEmail(ctx, []string{"paul@example.fr"})
	require.NoError(t, err)
	assert.Empty(t, accounts)

	event, err := s.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Nil(t, event.LastSyncAt)
}

func TestStore_NotFound(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	_, err := s.GetEvent(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrEventNotFound)

	_, err = s.GetImportLog(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrImportLogNotFound)
}

func TestStore_Credentials(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	got, err := s.LoadTicketingCredentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.SaveTicketingCredentials(ctx, "k1:abc"))
	require.NoError(t, s.SaveTicketingCredentials(ctx, "k1:def"))

	got, err = s.LoadTicketingCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k1:def", got)
}

func TestStore_ListAutoSyncEvents(t *testing.T) {
	s, pool := testStore(t)
	flagged := seedEvent(t, pool, true)
	seedEvent(t, pool, false)

	events, err := s.ListAutoSyncEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, flagged, events[0].ID)
}
