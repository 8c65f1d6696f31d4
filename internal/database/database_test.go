package database

import (
	"path/filepath"
	"testing"

	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/model"
)

func TestInitSqliteMigrates(t *testing.T) {
	db, err := Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close(db)

	for _, table := range []string{"transaction", "tx_event", "campaign_index"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %s not created", table)
		}
	}

	tx := model.TransactionModel{Hash: "0x01", ChainId: 1, ContractAddress: "0xaa", Method: "fund", Status: model.TransactionStatusPending}
	if err := db.Create(&tx).Error; err != nil {
		t.Fatal(err)
	}
	dup := model.TransactionModel{Hash: "0x01", ChainId: 1, ContractAddress: "0xaa", Method: "fund", Status: model.TransactionStatusPending}
	if err := db.Create(&dup).Error; err == nil {
		t.Error("expected unique violation on hash")
	}
}

func TestInitRejectsUnknownDriver(t *testing.T) {
	if _, err := Init(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}
