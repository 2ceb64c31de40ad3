package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
)

const uniqueViolation = "23505"

// Store is the sqlx backed store.Store. Outside InTx every call runs on the
// pool; inside InTx the repositories are rebound to the transaction.
type Store struct {
	db *sqlx.DB
	*WalletRepository
	*TransactionRepository
	*InvestmentRepository
}

var _ store.Store = (*Store)(nil)

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:                    db,
		WalletRepository:      NewWalletRepository(db),
		TransactionRepository: NewTransactionRepository(db),
		InvestmentRepository:  NewInvestmentRepository(db),
	}
}

type txRepos struct {
	*WalletRepository
	*TransactionRepository
	*InvestmentRepository
}

// InTx runs fn inside one database transaction. Row locks taken with the
// Lock* methods are held until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(r store.Repos) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Storage(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	repos := &txRepos{
		WalletRepository:      NewWalletRepository(tx),
		TransactionRepository: NewTransactionRepository(tx),
		InvestmentRepository:  NewInvestmentRepository(tx),
	}
	if err := fn(repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Storage(err, "failed to commit transaction")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Storage(s.db.PingContext(ctx), "database ping failed")
}

// notFoundOr maps sql.ErrNoRows to the given domain error and everything
// else to ErrStorageUnavailable.
func notFoundOr(err, notFound error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Storage(err, message)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func checkAffected(res sql.Result, none error, message string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Storage(err, message)
	}
	if rows == 0 {
		return none
	}
	return nil
}
