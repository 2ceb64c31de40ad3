// Seeding tool for local environments: a default package catalog and one
// funded demo user.
//
//	SEED_EMAIL=jane.doe@example.com SEED_FUNDING=5000 go run ./cmd/seed
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"yieldwallet/internal/admin"
	"yieldwallet/internal/domain"
	"yieldwallet/internal/investment"
	"yieldwallet/internal/ledger"
	"yieldwallet/internal/repository/postgres"
	"yieldwallet/internal/wallet"
	"yieldwallet/pkg/config"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
)

var catalog = []investment.CreatePackageRequest{
	{Name: "Starter", MinAmount: decimal.NewFromInt(50), MaxAmount: ptr(decimal.NewFromInt(1000)), DailyReturn: decimal.RequireFromString("0.005"), DurationDays: 30},
	{Name: "Growth", MinAmount: decimal.NewFromInt(500), MaxAmount: ptr(decimal.NewFromInt(10000)), DailyReturn: decimal.RequireFromString("0.008"), DurationDays: 90},
	{Name: "Premium", MinAmount: decimal.NewFromInt(5000), DailyReturn: decimal.RequireFromString("0.012"), DurationDays: 180},
}

func main() {
	_ = godotenv.Load()
	log := logger.New("seed")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	ctx := context.Background()
	st := postgres.NewStore(db)
	wallets := wallet.NewService(st, log)
	led := ledger.NewService(st, log)
	inv := investment.NewService(st, led, log)
	adm := admin.NewService(st, wallets, led, inv, log)

	ensurePackages(ctx, inv, log)

	email := getenv("SEED_EMAIL", "jane.doe@example.com")
	userID := ensureUser(ctx, db, log, email, getenv("SEED_FIRST", "Jane"), getenv("SEED_LAST", "Doe"))
	funding, err := decimal.NewFromString(getenv("SEED_FUNDING", "5000"))
	if err != nil {
		log.Fatal("SEED_FUNDING must be a decimal", map[string]interface{}{"error": err.Error()})
	}
	ensureWallet(ctx, wallets, adm, log, userID, funding)

	log.Info("Seed complete", map[string]interface{}{"user_id": userID, "email": email})
}

func ensurePackages(ctx context.Context, inv *investment.Service, log logger.Logger) {
	existing, err := inv.ListPackages(ctx, false)
	if err != nil {
		log.Fatal("Failed to list packages", map[string]interface{}{"error": err.Error()})
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}
	for _, req := range catalog {
		if have[req.Name] {
			continue
		}
		if _, err := inv.CreatePackage(ctx, req); err != nil {
			log.Fatal("Failed to create package", map[string]interface{}{"name": req.Name, "error": err.Error()})
		}
	}
}

func ensureUser(ctx context.Context, db *sqlx.DB, log logger.Logger, email, first, last string) uuid.UUID {
	var id uuid.UUID
	err := db.GetContext(ctx, &id, `
		INSERT INTO users (id, email, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		RETURNING id
	`, uuid.New(), email, first, last)
	if err != nil {
		log.Fatal("Failed to upsert user", map[string]interface{}{"email": email, "error": err.Error()})
	}
	return id
}

func ensureWallet(ctx context.Context, wallets *wallet.Service, adm *admin.Service, log logger.Logger, userID uuid.UUID, funding decimal.Decimal) {
	w, err := wallets.Get(ctx, userID)
	if errors.Is(err, errors.ErrWalletNotFound) {
		w, err = wallets.Create(ctx, userID, domain.DefaultCurrency)
	}
	if err != nil {
		log.Fatal("Failed to ensure wallet", map[string]interface{}{"error": err.Error()})
	}
	if w.Status != domain.WalletStatusActive {
		if w, err = adm.SetWalletStatus(ctx, w.ID, domain.WalletStatusActive); err != nil {
			log.Fatal("Failed to activate wallet", map[string]interface{}{"error": err.Error()})
		}
	}
	if !w.Balance.IsZero() || !funding.IsPositive() {
		return
	}
	ref := "seed:opening-deposit"
	if _, err := adm.RecordTransaction(ctx, admin.TransactionRequest{
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    funding,
		Reference: &ref,
	}); err != nil {
		log.Fatal("Failed to fund wallet", map[string]interface{}{"error": err.Error()})
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func ptr[T any](v T) *T { return &v }
