// Package memory is an in-process store.Store. Units of work are serialized
// by one mutex and run against a copy of the data that replaces the live
// copy only when the unit succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
)

// Owner is the subset of a user record the admin wallet listing joins in.
type Owner struct {
	Email    string
	FullName string
}

type state struct {
	seq           int64
	order         map[uuid.UUID]int64
	owners        map[uuid.UUID]Owner
	wallets       map[uuid.UUID]domain.Wallet
	walletsByUser map[uuid.UUID]uuid.UUID
	transactions  map[uuid.UUID]domain.Transaction
	packages      map[uuid.UUID]domain.InvestmentPackage
	positions     map[uuid.UUID]domain.UserInvestment
}

func newState() *state {
	return &state{
		order:         make(map[uuid.UUID]int64),
		owners:        make(map[uuid.UUID]Owner),
		wallets:       make(map[uuid.UUID]domain.Wallet),
		walletsByUser: make(map[uuid.UUID]uuid.UUID),
		transactions:  make(map[uuid.UUID]domain.Transaction),
		packages:      make(map[uuid.UUID]domain.InvestmentPackage),
		positions:     make(map[uuid.UUID]domain.UserInvestment),
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:           s.seq,
		order:         make(map[uuid.UUID]int64, len(s.order)),
		owners:        make(map[uuid.UUID]Owner, len(s.owners)),
		wallets:       make(map[uuid.UUID]domain.Wallet, len(s.wallets)),
		walletsByUser: make(map[uuid.UUID]uuid.UUID, len(s.walletsByUser)),
		transactions:  make(map[uuid.UUID]domain.Transaction, len(s.transactions)),
		packages:      make(map[uuid.UUID]domain.InvestmentPackage, len(s.packages)),
		positions:     make(map[uuid.UUID]domain.UserInvestment, len(s.positions)),
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.owners {
		c.owners[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.walletsByUser {
		c.walletsByUser[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.packages {
		c.packages[k] = v
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	return c
}

func (s *state) touch(id uuid.UUID) {
	if _, ok := s.order[id]; ok {
		return
	}
	s.seq++
	s.order[id] = s.seq
}

// Store implements store.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: newState()}
}

// SeedOwner registers owner details used by ListWalletViews.
func (s *Store) SeedOwner(userID uuid.UUID, owner Owner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.owners[userID] = owner
}

func (s *Store) InTx(ctx context.Context, fn func(r store.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&repos{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// view runs fn against the live state under the lock.
func (s *Store) view(fn func(r *repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repos{st: s.state})
}

func (s *Store) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	return s.view(func(r *repos) error { return r.CreateWallet(ctx, w) })
}

func (s *Store) GetWallet(ctx context.Context, id uuid.UUID) (out *domain.Wallet, err error) {
	err = s.view(func(r *repos) error { out, err = r.GetWallet(ctx, id); return err })
	return out, err
}

func (s *Store) GetWalletByUser(ctx context.Context, userID uuid.UUID) (out *domain.Wallet, err error) {
	err = s.view(func(r *repos) error { out, err = r.GetWalletByUser(ctx, userID); return err })
	return out, err
}

func (s *Store) LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.GetWallet(ctx, id)
}

func (s *Store) UpdateWallet(ctx context.Context, w *domain.Wallet) error {
	return s.view(func(r *repos) error { return r.UpdateWallet(ctx, w) })
}

func (s *Store) ListWalletViews(ctx context.Context) (out []*domain.WalletView, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListWalletViews(ctx); return err })
	return out, err
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	return s.view(func(r *repos) error { return r.CreateTransaction(ctx, t) })
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (out *domain.Transaction, err error) {
	err = s.view(func(r *repos) error { out, err = r.GetTransaction(ctx, id); return err })
	return out, err
}

func (s *Store) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.GetTransaction(ctx, id)
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	return s.view(func(r *repos) error { return r.UpdateTransaction(ctx, t) })
}

func (s *Store) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID) (out []*domain.Transaction, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListTransactionsByWallet(ctx, walletID); return err })
	return out, err
}

func (s *Store) ListTransactions(ctx context.Context) (out []*domain.Transaction, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListTransactions(ctx); return err })
	return out, err
}

func (s *Store) CreatePackage(ctx context.Context, p *domain.InvestmentPackage) error {
	return s.view(func(r *repos) error { return r.CreatePackage(ctx, p) })
}

func (s *Store) GetPackage(ctx context.Context, id uuid.UUID) (out *domain.InvestmentPackage, err error) {
	err = s.view(func(r *repos) error { out, err = r.GetPackage(ctx, id); return err })
	return out, err
}

func (s *Store) UpdatePackage(ctx context.Context, p *domain.InvestmentPackage) error {
	return s.view(func(r *repos) error { return r.UpdatePackage(ctx, p) })
}

func (s *Store) ListPackages(ctx context.Context, activeOnly bool) (out []*domain.InvestmentPackage, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListPackages(ctx, activeOnly); return err })
	return out, err
}

func (s *Store) CreatePosition(ctx context.Context, i *domain.UserInvestment) error {
	return s.view(func(r *repos) error { return r.CreatePosition(ctx, i) })
}

func (s *Store) GetPosition(ctx context.Context, id uuid.UUID) (out *domain.UserInvestment, err error) {
	err = s.view(func(r *repos) error { out, err = r.GetPosition(ctx, id); return err })
	return out, err
}

func (s *Store) LockPosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error) {
	return s.GetPosition(ctx, id)
}

func (s *Store) UpdatePosition(ctx context.Context, i *domain.UserInvestment) error {
	return s.view(func(r *repos) error { return r.UpdatePosition(ctx, i) })
}

func (s *Store) ListPositionsByUser(ctx context.Context, userID uuid.UUID) (out []*domain.UserInvestment, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListPositionsByUser(ctx, userID); return err })
	return out, err
}

func (s *Store) ListPositions(ctx context.Context) (out []*domain.UserInvestment, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListPositions(ctx); return err })
	return out, err
}

func (s *Store) ListActivePositions(ctx context.Context) (out []*domain.UserInvestment, err error) {
	err = s.view(func(r *repos) error { out, err = r.ListActivePositions(ctx); return err })
	return out, err
}

// repos operates on one state without locking; the caller holds Store.mu.
type repos struct {
	st *state
}

func (r *repos) CreateWallet(_ context.Context, w *domain.Wallet) error {
	if _, ok := r.st.walletsByUser[w.UserID]; ok {
		return errors.ErrWalletAlreadyExists
	}
	r.st.wallets[w.ID] = *w
	r.st.walletsByUser[w.UserID] = w.ID
	r.st.touch(w.ID)
	return nil
}

func (r *repos) GetWallet(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := r.st.wallets[id]
	if !ok {
		return nil, errors.ErrWalletNotFound
	}
	return &w, nil
}

func (r *repos) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	id, ok := r.st.walletsByUser[userID]
	if !ok {
		return nil, errors.ErrWalletNotFound
	}
	return r.GetWallet(ctx, id)
}

func (r *repos) LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.GetWallet(ctx, id)
}

func (r *repos) UpdateWallet(_ context.Context, w *domain.Wallet) error {
	cur, ok := r.st.wallets[w.ID]
	if !ok {
		return errors.ErrWalletNotFound
	}
	if cur.Version != w.Version {
		return errors.ErrConcurrentUpdate
	}
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	r.st.wallets[w.ID] = *w
	return nil
}

func (r *repos) ListWalletViews(_ context.Context) ([]*domain.WalletView, error) {
	out := make([]*domain.WalletView, 0, len(r.st.wallets))
	for _, w := range r.st.wallets {
		v := &domain.WalletView{Wallet: w}
		if o, ok := r.st.owners[w.UserID]; ok {
			if o.Email != "" {
				email := o.Email
				v.OwnerEmail = &email
			}
			if o.FullName != "" {
				name := o.FullName
				v.OwnerName = &name
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// newer orders by creation time descending, then by insertion order.
func (r *repos) newer(a, b time.Time, aID, bID uuid.UUID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return r.st.order[aID] > r.st.order[bID]
}

func (r *repos) CreateTransaction(_ context.Context, t *domain.Transaction) error {
	r.st.transactions[t.ID] = *t
	r.st.touch(t.ID)
	return nil
}

func (r *repos) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, ok := r.st.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	return &t, nil
}

func (r *repos) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetTransaction(ctx, id)
}

func (r *repos) UpdateTransaction(_ context.Context, t *domain.Transaction) error {
	cur, ok := r.st.transactions[t.ID]
	if !ok {
		return errors.ErrTransactionNotFound
	}
	cur.Status = t.Status
	cur.AppliedAt = t.AppliedAt
	cur.UpdatedAt = time.Now().UTC()
	t.UpdatedAt = cur.UpdatedAt
	r.st.transactions[t.ID] = cur
	return nil
}

func (r *repos) ListTransactionsByWallet(_ context.Context, walletID uuid.UUID) ([]*domain.Transaction, error) {
	return r.sortedTransactions(func(t *domain.Transaction) bool { return t.WalletID == walletID }), nil
}

func (r *repos) ListTransactions(_ context.Context) ([]*domain.Transaction, error) {
	return r.sortedTransactions(func(*domain.Transaction) bool { return true }), nil
}

func (r *repos) sortedTransactions(keep func(*domain.Transaction) bool) []*domain.Transaction {
	out := make([]*domain.Transaction, 0)
	for _, t := range r.st.transactions {
		t := t
		if keep(&t) {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (r *repos) CreatePackage(_ context.Context, p *domain.InvestmentPackage) error {
	r.st.packages[p.ID] = *p
	r.st.touch(p.ID)
	return nil
}

func (r *repos) GetPackage(_ context.Context, id uuid.UUID) (*domain.InvestmentPackage, error) {
	p, ok := r.st.packages[id]
	if !ok {
		return nil, errors.ErrPackageNotFound
	}
	return &p, nil
}

func (r *repos) UpdatePackage(_ context.Context, p *domain.InvestmentPackage) error {
	if _, ok := r.st.packages[p.ID]; !ok {
		return errors.ErrPackageNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	r.st.packages[p.ID] = *p
	return nil
}

func (r *repos) ListPackages(_ context.Context, activeOnly bool) ([]*domain.InvestmentPackage, error) {
	out := make([]*domain.InvestmentPackage, 0, len(r.st.packages))
	for _, p := range r.st.packages {
		p := p
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MinAmount.Equal(out[j].MinAmount) {
			return out[i].MinAmount.LessThan(out[j].MinAmount)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *repos) CreatePosition(_ context.Context, i *domain.UserInvestment) error {
	r.st.positions[i.ID] = *i
	r.st.touch(i.ID)
	return nil
}

func (r *repos) GetPosition(_ context.Context, id uuid.UUID) (*domain.UserInvestment, error) {
	i, ok := r.st.positions[id]
	if !ok {
		return nil, errors.ErrInvestmentNotFound
	}
	return &i, nil
}

func (r *repos) LockPosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error) {
	return r.GetPosition(ctx, id)
}

func (r *repos) UpdatePosition(_ context.Context, i *domain.UserInvestment) error {
	if _, ok := r.st.positions[i.ID]; !ok {
		return errors.ErrInvestmentNotFound
	}
	i.UpdatedAt = time.Now().UTC()
	r.st.positions[i.ID] = *i
	return nil
}

func (r *repos) ListPositionsByUser(_ context.Context, userID uuid.UUID) ([]*domain.UserInvestment, error) {
	return r.sortedPositions(func(i *domain.UserInvestment) bool { return i.UserID == userID }), nil
}

func (r *repos) ListPositions(_ context.Context) ([]*domain.UserInvestment, error) {
	return r.sortedPositions(func(*domain.UserInvestment) bool { return true }), nil
}

func (r *repos) ListActivePositions(_ context.Context) ([]*domain.UserInvestment, error) {
	out := r.sortedPositions(func(i *domain.UserInvestment) bool {
		return i.Status == domain.InvestmentStatusActive
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *repos) sortedPositions(keep func(*domain.UserInvestment) bool) []*domain.UserInvestment {
	out := make([]*domain.UserInvestment, 0)
	for _, p := range r.st.positions {
		p := p
		if keep(&p) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}
