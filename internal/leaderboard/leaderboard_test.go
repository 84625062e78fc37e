package leaderboard

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/coinladder/api/internal/ledger"
	"github.com/coinladder/api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "leaderboard_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&ledger.Wallet{}, &types.Trade{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewService(db, ledger.NewService(db)), db
}

func seedWallet(t *testing.T, db *gorm.DB, userID, name string, balance float64) {
	t.Helper()
	wallet := &ledger.Wallet{
		UserID:        userID,
		DisplayName:   name,
		PreferredName: name,
		CashBalance:   balance,
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("failed to seed wallet %s: %v", userID, err)
	}
}

func TestTopOrdersByBalance(t *testing.T) {
	svc, db := newTestService(t)

	seedWallet(t, db, "user-1", "middling", 9000)
	seedWallet(t, db, "user-2", "winner", 15000)
	seedWallet(t, db, "user-3", "loser", 2000)

	entries, err := svc.Top(DefaultSize)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	wantOrder := []string{"winner", "middling", "loser"}
	for i, want := range wantOrder {
		if entries[i].DisplayName != want {
			t.Errorf("rank %d = %q, want %q", i+1, entries[i].DisplayName, want)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("entry %d rank = %d, want %d", i, entries[i].Rank, i+1)
		}
	}
}

func TestTopBreaksTiesByCreationOrder(t *testing.T) {
	svc, db := newTestService(t)

	seedWallet(t, db, "user-1", "earlier", 10000)
	seedWallet(t, db, "user-2", "later", 10000)

	entries, err := svc.Top(DefaultSize)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].DisplayName != "earlier" || entries[1].DisplayName != "later" {
		t.Errorf("tie order = [%q, %q], want earlier wallet first",
			entries[0].DisplayName, entries[1].DisplayName)
	}
}

func TestTopLimit(t *testing.T) {
	svc, db := newTestService(t)

	for i := 0; i < DefaultSize+5; i++ {
		seedWallet(t, db, fmt.Sprintf("user-%d", i), fmt.Sprintf("trader-%d", i), float64(1000*i))
	}

	entries, err := svc.Top(DefaultSize)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(entries) != DefaultSize {
		t.Errorf("got %d entries, want %d", len(entries), DefaultSize)
	}

	entries, err = svc.Top(0)
	if err != nil {
		t.Fatalf("Top(0) error = %v", err)
	}
	if len(entries) != DefaultSize {
		t.Errorf("Top(0) returned %d entries, want default %d", len(entries), DefaultSize)
	}
}

func TestUserRank(t *testing.T) {
	svc, db := newTestService(t)

	seedWallet(t, db, "user-1", "whale", 20000)
	seedWallet(t, db, "user-2", "shark", 15000)
	seedWallet(t, db, "user-3", "minnow", 5000)

	rank, err := svc.UserRank("user-2")
	if err != nil {
		t.Fatalf("UserRank() error = %v", err)
	}
	if rank.Rank != 2 {
		t.Errorf("rank = %d, want 2", rank.Rank)
	}
	if rank.CashBalance != 15000 {
		t.Errorf("cash balance = %v, want 15000", rank.CashBalance)
	}
}

func TestUserRankCreatesMissingWallet(t *testing.T) {
	svc, db := newTestService(t)

	seedWallet(t, db, "user-1", "whale", 20000)

	rank, err := svc.UserRank("brand-new-user")
	if err != nil {
		t.Fatalf("UserRank() error = %v", err)
	}
	if rank.CashBalance != ledger.StartingBalance {
		t.Errorf("fresh wallet balance = %v, want %v", rank.CashBalance, ledger.StartingBalance)
	}
	if rank.Rank != 2 {
		t.Errorf("fresh wallet rank = %d, want 2 behind the whale", rank.Rank)
	}
}
