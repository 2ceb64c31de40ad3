package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"yieldwallet/internal/ledger"
	"yieldwallet/internal/repository/postgres"
	"yieldwallet/pkg/config"
	"yieldwallet/pkg/logger"
)

func main() {
	stuckAfter := flag.Duration("stuck-after", 24*time.Hour, "report pending transactions older than this")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("reconcile")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := ledger.NewService(postgres.NewStore(db), log).Reconcile(ctx, *stuckAfter)
	if err != nil {
		log.Fatal("Reconciliation failed", map[string]interface{}{"error": err.Error()})
	}

	fmt.Println("=========================================================")
	fmt.Println("LEDGER RECONCILIATION REPORT")
	fmt.Printf("Time: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Println("=========================================================")

	fmt.Println("\n[1] Total wallet liabilities")
	for cur, total := range report.Liabilities {
		fmt.Printf("    - %s: %s\n", cur, total)
	}

	fmt.Println("\n[2] Negative balances")
	for _, id := range report.Negative {
		fmt.Printf("    [ALERT] wallet %s is negative\n", id)
	}
	if len(report.Negative) == 0 {
		fmt.Println("    [PASS] none")
	}

	fmt.Println("\n[3] Balance vs applied history")
	for _, d := range report.Drifted {
		fmt.Printf("    [ALERT] wallet %s holds %s, history sums to %s\n", d.WalletID, d.Balance, d.Expected)
	}
	if len(report.Drifted) == 0 {
		fmt.Println("    [PASS] every balance matches its history")
	}

	fmt.Printf("\n[4] Pending longer than %s\n", *stuckAfter)
	for _, t := range report.Stuck {
		fmt.Printf("    [WARN] %s %s %s since %s\n", t.ID, t.Type, t.Amount, t.CreatedAt.Format(time.RFC3339))
	}
	if len(report.Stuck) == 0 {
		fmt.Println("    [PASS] none")
	}

	if !report.Healthy() {
		os.Exit(1)
	}
}
