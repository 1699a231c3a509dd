// Package memory is an in-process implementation of the pipeline store.
// It backs tests and local dry runs; every write transaction works on a copy
// of the state that replaces the original only when the transaction succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

type regKey struct {
	event   uuid.UUID
	account uuid.UUID
}

type state struct {
	events        map[uuid.UUID]core.Event
	slots         map[uuid.UUID][]core.Slot
	accounts      map[uuid.UUID]core.Account
	byEmail       map[string]uuid.UUID
	registrations map[regKey]core.Registration
	logs          map[uuid.UUID]core.ImportLog
	credentials   string
}

func newState() *state {
	return &state{
		events:        make(map[uuid.UUID]core.Event),
		slots:         make(map[uuid.UUID][]core.Slot),
		accounts:      make(map[uuid.UUID]core.Account),
		byEmail:       make(map[string]uuid.UUID),
		registrations: make(map[regKey]core.Registration),
		logs:          make(map[uuid.UUID]core.ImportLog),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = append([]core.Slot(nil), v...)
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.byEmail {
		c.byEmail[k] = v
	}
	for k, v := range s.registrations {
		c.registrations[k] = v
	}
	for k, v := range s.logs {
		c.logs[k] = v
	}
	c.credentials = s.credentials
	return c
}

// Store is a concurrency-safe in-memory store.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state

	// FailOn, when set, is called before every transactional write with the
	// operation name. A non-nil result aborts the write with that error.
	FailOn func(op string) error
}

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// AddEvent stores or replaces an event.
func (s *Store) AddEvent(e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events[e.ID] = e
}

// AddSlot attaches a slot to its event.
func (s *Store) AddSlot(sl core.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.slots[sl.EventID] = append(s.st.slots[sl.EventID], sl)
}

// AddAccount stores an account, keyed by its lowercased email.
func (s *Store) AddAccount(a core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Email = core.NormalizeEmail(a.Email)
	s.st.accounts[a.ID] = a
	s.st.byEmail[a.Email] = a.ID
}

// AddRegistration stores a registration as if made outside any import.
func (s *Store) AddRegistration(r core.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.registrations[regKey{r.EventID, r.AccountID}] = r
}

// Accounts returns every account sorted by email.
func (s *Store) Accounts() []core.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Account, 0, len(s.st.accounts))
	for _, a := range s.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// AccountByEmail returns the account registered under email.
func (s *Store) AccountByEmail(email string) (core.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.st.byEmail[core.NormalizeEmail(email)]
	if !ok {
		return core.Account{}, false
	}
	return s.st.accounts[id], true
}

// Registrations returns the registrations of an event.
func (s *Store) Registrations(eventID uuid.UUID) []core.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Registration
	for k, r := range s.st.registrations {
		if k.event == eventID {
			out = append(out, r)
		}
	}
	return out
}

// DeleteEvent removes an event with its slots, registrations and import
// logs.
func (s *Store) DeleteEvent(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.events, id)
	delete(s.st.slots, id)
	for k := range s.st.registrations {
		if k.event == id {
			delete(s.st.registrations, k)
		}
	}
	for lid, l := range s.st.logs {
		if l.EventID == id {
			delete(s.st.logs, lid)
		}
	}
}

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.st.events[id]
	if !ok {
		return core.Event{}, core.ErrEventNotFound
	}
	return e, nil
}

func (s *Store) ListSlots(_ context.Context, eventID uuid.UUID) ([]core.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]core.Slot(nil), s.st.slots[eventID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *Store) FindAccountsByEmail(_ context.Context, emails []string) (map[string]core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.Account)
	for _, e := range emails {
		if id, ok := s.st.byEmail[core.NormalizeEmail(e)]; ok {
			a := s.st.accounts[id]
			out[a.Email] = a
		}
	}
	return out, nil
}

func (s *Store) RegisteredAccounts(_ context.Context, eventID uuid.UUID, accountIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range accountIDs {
		if _, ok := s.st.registrations[regKey{eventID, id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *Store) CountRegistrationsBySlot(_ context.Context, eventID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]int)
	for k, r := range s.st.registrations {
		if k.event == eventID && r.SlotID != nil {
			out[*r.SlotID]++
		}
	}
	return out, nil
}

func (s *Store) ListImportLogs(_ context.Context, eventID uuid.UUID) ([]core.ImportLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.ImportLog
	for _, l := range s.st.logs {
		if l.EventID == eventID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *Store) GetImportLog(_ context.Context, id uuid.UUID) (core.ImportLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.st.logs[id]
	if !ok {
		return core.ImportLog{}, core.ErrImportLogNotFound
	}
	return l, nil
}

// ListAutoSyncEvents returns the events flagged for scheduled sync that are
// linked to a ticketing event.
func (s *Store) ListAutoSyncEvents(_ context.Context) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Event
	for _, e := range s.st.events {
		if e.AutoSync && e.TicketingRef != "" {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// LoadTicketingCredentials returns the stored ciphertext, or "" when none.
func (s *Store) LoadTicketingCredentials(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.credentials, nil
}

func (s *Store) SaveTicketingCredentials(_ context.Context, ciphertext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.credentials = ciphertext
	return nil
}

// InTx runs fn against a copy of the state. Transactions are serialized;
// reads outside them keep seeing the last committed state.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&tx{st: work, failOn: s.FailOn}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

type tx struct {
	st     *state
	failOn func(op string) error
}

func (t *tx) check(op string) error {
	if t.failOn == nil {
		return nil
	}
	return t.failOn(op)
}

func (t *tx) CreateImportLog(_ context.Context, l core.ImportLog) error {
	if err := t.check("create_import_log"); err != nil {
		return err
	}
	if _, ok := t.st.events[l.EventID]; !ok {
		return core.ErrEventNotFound
	}
	t.st.logs[l.ID] = l
	return nil
}

func (t *tx) FinalizeImportLog(_ context.Context, id uuid.UUID, totals core.ImportTotals, completedAt time.Time) error {
	if err := t.check("finalize_import_log"); err != nil {
		return err
	}
	l, ok := t.st.logs[id]
	if !ok {
		return core.ErrImportLogNotFound
	}
	l.Totals = totals
	l.CompletedAt = &completedAt
	t.st.logs[id] = l
	return nil
}

func (t *tx) CreateAccount(_ context.Context, acc core.Account) (core.Account, bool, error) {
	if err := t.check("create_account"); err != nil {
		return core.Account{}, false, err
	}
	acc.Email = core.NormalizeEmail(acc.Email)
	if id, ok := t.st.byEmail[acc.Email]; ok {
		return t.st.accounts[id], false, nil
	}
	t.st.accounts[acc.ID] = acc
	t.st.byEmail[acc.Email] = acc.ID
	return acc, true, nil
}

func (t *tx) BackfillContact(_ context.Context, accountID uuid.UUID, c core.ContactDetails) error {
	if err := t.check("backfill_contact"); err != nil {
		return err
	}
	a, ok := t.st.accounts[accountID]
	if !ok {
		return nil
	}
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	fill(&a.Phone, c.Phone)
	fill(&a.Address, c.Address)
	fill(&a.PostalCode, c.PostalCode)
	fill(&a.City, c.City)
	t.st.accounts[accountID] = a
	return nil
}

func (t *tx) CreateRegistration(_ context.Context, r core.Registration) (bool, error) {
	if err := t.check("create_registration"); err != nil {
		return false, err
	}
	k := regKey{r.EventID, r.AccountID}
	if _, ok := t.st.registrations[k]; ok {
		return false, nil
	}
	t.st.registrations[k] = r
	return true, nil
}

func (t *tx) AdvanceWatermark(_ context.Context, eventID uuid.UUID, at time.Time) error {
	if err := t.check("advance_watermark"); err != nil {
		return err
	}
	e, ok := t.st.events[eventID]
	if !ok {
		return core.ErrEventNotFound
	}
	at = at.UTC()
	e.LastSyncAt = &at
	t.st.events[eventID] = e
	return nil
}
