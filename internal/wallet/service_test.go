package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/repository/memory"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockRepository) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockRepository) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockRepository) InTx(ctx context.Context, fn func(r store.Repos) error) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Tests ---

func TestService_CreateDefaults(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, logger.NewNop())
	owner := uuid.New()

	repo.On("CreateWallet", mock.Anything, mock.MatchedBy(func(w *domain.Wallet) bool {
		return w.UserID == owner
	})).Return(nil)

	w, err := svc.Create(context.Background(), owner, "")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.Equal(t, domain.Currency("USD"), w.Currency)
	assert.Equal(t, domain.WalletStatusNotActivated, w.Status)
	assert.True(t, w.AllowDeposits)
	assert.True(t, w.AllowWithdrawals)
	assert.True(t, w.AllowPurchases)
	repo.AssertExpectations(t)
}

func TestService_CreateDuplicate(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, logger.NewNop())

	repo.On("CreateWallet", mock.Anything, mock.Anything).Return(errors.ErrWalletAlreadyExists)

	_, err := svc.Create(context.Background(), uuid.New(), "usd")
	assert.ErrorIs(t, err, errors.ErrWalletAlreadyExists)
	repo.AssertExpectations(t)
}

func TestService_GetMissing(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, logger.NewNop())
	owner := uuid.New()

	repo.On("GetWalletByUser", mock.Anything, owner).Return(nil, errors.ErrWalletNotFound)

	_, err := svc.Get(context.Background(), owner)
	assert.ErrorIs(t, err, errors.ErrWalletNotFound)
	repo.AssertExpectations(t)
}

func TestService_StorageFailureSurfaces(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, logger.NewNop())

	repo.On("InTx", mock.Anything).Return(errors.Storage(assert.AnError, "failed to begin transaction"))

	_, err := svc.SetStatus(context.Background(), uuid.New(), domain.WalletStatusActive)
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
}

func newMemoryService(t *testing.T) (*Service, *domain.Wallet) {
	t.Helper()
	st := memory.NewStore()
	svc := NewService(st, logger.NewNop())
	w, err := svc.Create(context.Background(), uuid.New(), "USD")
	require.NoError(t, err)
	return svc, w
}

func TestService_SetStatus(t *testing.T) {
	svc, w := newMemoryService(t)
	ctx := context.Background()

	got, err := svc.SetStatus(ctx, w.ID, domain.WalletStatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.WalletStatusActive, got.Status)
	assert.Greater(t, got.Version, w.Version)

	_, err = svc.SetStatus(ctx, w.ID, "closed")
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	_, err = svc.SetStatus(ctx, uuid.New(), domain.WalletStatusFrozen)
	assert.ErrorIs(t, err, errors.ErrWalletNotFound)
}

func TestService_SetPermission(t *testing.T) {
	svc, w := newMemoryService(t)
	ctx := context.Background()

	got, err := svc.SetPermission(ctx, w.ID, domain.PermissionWithdrawals, false)
	require.NoError(t, err)
	assert.False(t, got.AllowWithdrawals)
	assert.True(t, got.AllowDeposits)

	_, err = svc.SetPermission(ctx, w.ID, "transfers", false)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestService_UpdateControls(t *testing.T) {
	svc, w := newMemoryService(t)
	ctx := context.Background()
	off := false

	got, err := svc.UpdateControls(ctx, w.ID, domain.ControlsPatch{AllowPurchases: &off, AllowDeposits: &off})
	require.NoError(t, err)
	assert.False(t, got.AllowPurchases)
	assert.False(t, got.AllowDeposits)
	assert.True(t, got.AllowWithdrawals)

	stored, err := svc.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, stored.AllowPurchases)

	unchanged, err := svc.UpdateControls(ctx, w.ID, domain.ControlsPatch{})
	require.NoError(t, err)
	assert.Equal(t, stored.Version, unchanged.Version)
}
