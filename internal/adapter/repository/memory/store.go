package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
	"github.com/google/uuid"
)

// Store is an in-memory implementation of the persistence layer. It backs
// the dev server mode and the unit tests; the postgres adapter is the
// production counterpart.
//
// A single mutex serializes atomic units, and Do snapshots the mutable
// state so a failed unit rolls back completely. The per-aggregate
// repositories are views over the same core.
type Store struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]*domain.Account
	plans        map[uuid.UUID]*domain.Plan
	positions    map[uuid.UUID]*domain.Position
	transactions []*domain.Transaction
	byReference  map[string]*domain.Transaction
	events       map[uuid.UUID]*domain.OutboxEvent
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		accounts:    make(map[uuid.UUID]*domain.Account),
		plans:       make(map[uuid.UUID]*domain.Plan),
		positions:   make(map[uuid.UUID]*domain.Position),
		byReference: make(map[string]*domain.Transaction),
		events:      make(map[uuid.UUID]*domain.OutboxEvent),
	}
}

// Accounts returns the account repository view
func (s *Store) Accounts() domain.AccountRepository { return accountRepo{s} }

// Plans returns the plan catalog view
func (s *Store) Plans() domain.PlanRepository { return planRepo{s} }

// Positions returns the position repository view
func (s *Store) Positions() domain.PositionRepository { return positionRepo{s} }

// Transactions returns the transaction log view
func (s *Store) Transactions() domain.TransactionRepository { return transactionRepo{s} }

// Outbox returns the outbox repository view
func (s *Store) Outbox() domain.OutboxRepository { return outboxRepo{s} }

// --- AccountRepository ---

type accountRepo struct{ s *Store }

func (r accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (r accountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, account := range r.s.accounts {
		if account.Email == email {
			return copyAccount(account), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r accountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[account.ID] = copyAccount(account)
	return nil
}

func (r accountRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.Status = status
	account.UpdatedAt = time.Now()
	return nil
}

func (r accountRepo) SetPINHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	account.PINHash = pinHash
	account.UpdatedAt = time.Now()
	return nil
}

// --- PlanRepository ---

type planRepo struct{ s *Store }

func (r planRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan, ok := r.s.plans[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (r planRepo) List(ctx context.Context, kindFilter domain.PlanKind) ([]*domain.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Plan
	for _, plan := range r.s.plans {
		if kindFilter == "" || plan.Kind == kindFilter {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r planRepo) Create(ctx context.Context, plan *domain.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.plans[plan.ID] = plan
	return nil
}

// --- PositionRepository ---

type positionRepo struct{ s *Store }

func (r positionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	position, ok := r.s.positions[id]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	return copyPosition(position), nil
}

func (r positionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Position
	for _, position := range r.s.positions {
		if position.AccountID == accountID {
			out = append(out, copyPosition(position))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

// --- TransactionRepository ---

type transactionRepo struct{ s *Store }

func (r transactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx, ok := r.s.byReference[reference]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

func (r transactionRepo) List(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []*domain.Transaction
	for i := len(r.s.transactions) - 1; i >= 0; i-- {
		if r.s.transactions[i].AccountID == accountID {
			matched = append(matched, copyTransaction(r.s.transactions[i]))
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r transactionRepo) Count(ctx context.Context, accountID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, tx := range r.s.transactions {
		if tx.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// --- OutboxRepository ---

type outboxRepo struct{ s *Store }

func (r outboxRepo) NextPending(ctx context.Context, now time.Time) (*domain.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var oldest *domain.OutboxEvent
	for _, event := range r.s.events {
		if event.Status != domain.OutboxStatusPending || event.NextRunAt.After(now) {
			continue
		}
		if oldest == nil || event.CreatedAt.Before(oldest.CreatedAt) {
			oldest = event
		}
	}
	if oldest == nil {
		return nil, nil
	}
	clone := *oldest
	return &clone, nil
}

func (r outboxRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(id, domain.OutboxStatusSent)
}

func (r outboxRepo) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextRun time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	event.Attempts = attempts
	event.NextRunAt = nextRun
	return nil
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(id, domain.OutboxStatusFailed)
}

func (r outboxRepo) setStatus(id uuid.UUID, status domain.OutboxStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	event, ok := r.s.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	event.Status = status
	return nil
}

// --- UnitOfWork ---

// Do runs fn against a transactional view of the store. The store mutex is
// held for the whole unit, and mutable state is snapshotted up front so an
// error from fn rolls everything back.
func (s *Store) Do(ctx context.Context, fn func(store domain.MovementStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(&txStore{s: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeState struct {
	accounts     map[uuid.UUID]*domain.Account
	positions    map[uuid.UUID]*domain.Position
	transactions []*domain.Transaction
	byReference  map[string]*domain.Transaction
	events       map[uuid.UUID]*domain.OutboxEvent
}

func (s *Store) snapshot() storeState {
	state := storeState{
		accounts:     make(map[uuid.UUID]*domain.Account, len(s.accounts)),
		positions:    make(map[uuid.UUID]*domain.Position, len(s.positions)),
		transactions: append([]*domain.Transaction(nil), s.transactions...),
		byReference:  make(map[string]*domain.Transaction, len(s.byReference)),
		events:       make(map[uuid.UUID]*domain.OutboxEvent, len(s.events)),
	}
	for id, account := range s.accounts {
		state.accounts[id] = copyAccount(account)
	}
	for id, position := range s.positions {
		state.positions[id] = copyPosition(position)
	}
	for ref, tx := range s.byReference {
		state.byReference[ref] = tx
	}
	for id, event := range s.events {
		clone := *event
		state.events[id] = &clone
	}
	return state
}

func (s *Store) restore(state storeState) {
	s.accounts = state.accounts
	s.positions = state.positions
	s.transactions = state.transactions
	s.byReference = state.byReference
	s.events = state.events
}

// txStore is the MovementStore view handed to a unit of work. The parent
// store's mutex is already held, so methods touch the maps directly.
type txStore struct {
	s *Store
}

func (t *txStore) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, ok := t.s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (t *txStore) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance domain.NewBalance) error {
	account, ok := t.s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if account.Version != balance.ExpectedVersion {
		return domain.ErrPersistenceConflict
	}
	account.Balance = balance.Balance
	account.Version++
	account.UpdatedAt = time.Now()
	return nil
}

func (t *txStore) GetPositionForUpdate(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	position, ok := t.s.positions[id]
	if !ok {
		return nil, domain.ErrPositionNotFound
	}
	return copyPosition(position), nil
}

func (t *txStore) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	// References are unique; a duplicate means a competing commit won
	if _, exists := t.s.byReference[tx.Reference]; exists {
		return domain.ErrPersistenceConflict
	}
	clone := copyTransaction(tx)
	t.s.transactions = append(t.s.transactions, clone)
	t.s.byReference[tx.Reference] = clone
	return nil
}

func (t *txStore) CreatePosition(ctx context.Context, position *domain.Position) error {
	t.s.positions[position.ID] = copyPosition(position)
	return nil
}

func (t *txStore) UpdatePosition(ctx context.Context, position *domain.Position) error {
	if _, ok := t.s.positions[position.ID]; !ok {
		return domain.ErrPositionNotFound
	}
	t.s.positions[position.ID] = copyPosition(position)
	return nil
}

func (t *txStore) AppendEvent(ctx context.Context, event *domain.OutboxEvent) error {
	clone := *event
	t.s.events[event.ID] = &clone
	return nil
}

func copyAccount(a *domain.Account) *domain.Account {
	clone := *a
	return &clone
}

func copyPosition(p *domain.Position) *domain.Position {
	clone := *p
	return &clone
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	clone := *t
	if t.Metadata != nil {
		clone.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
