package logic

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCampaignIndexSync(t *testing.T) {
	env := newTestEnv(t, false)
	all := summaries()
	env.setFactory(all, nil)
	env.setCampaign(campaignAddr, activeFixture())

	second := activeFixture()
	second.name = "Library"
	second.goal = ether(3)
	second.balance = ether(3)
	second.status = 1
	env.setCampaign(campaignAddr2, second)
	env.backend.SetError(campaignAddr2, "getContractBalance", errors.New("rpc timeout"))

	ctx := context.Background()
	written, err := env.index.Sync(ctx)
	if err != nil || written != 2 {
		t.Fatalf("Sync = %d, %v", written, err)
	}

	rows, total, err := env.index.List("", 1, 10)
	if err != nil || total != 2 {
		t.Fatalf("List = %d, %v", total, err)
	}
	// 按创建时间倒序
	if rows[0].Name != "Library" || rows[1].Name != "Solar Roof" {
		t.Fatalf("order = %s, %s", rows[0].Name, rows[1].Name)
	}
	if rows[0].Balance != "" || !rows[0].SyncedAt.IsZero() || rows[0].State != 1 {
		t.Errorf("partially read row = %+v", rows[0])
	}
	if rows[1].Goal != ether(1).String() || rows[1].SyncedAt.IsZero() {
		t.Errorf("complete row = %+v", rows[1])
	}

	// 余额读取恢复后补全，失败的字段保留旧值
	env.setCampaign(campaignAddr2, second)
	env.backend.SetError(campaignAddr2, "goal", errors.New("rpc timeout"))
	if _, err := env.index.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	rows, _, err = env.index.List(ownerAddr.Hex(), 1, 10)
	if err != nil || len(rows) != 1 || rows[0].Name != "Solar Roof" {
		t.Fatalf("owner filter rows = %+v, err = %v", rows, err)
	}
	rows, _, _ = env.index.List("", 1, 10)
	if rows[0].Balance != ether(3).String() || rows[0].Goal != ether(3).String() {
		t.Errorf("resynced row = %+v", rows[0])
	}

	if _, _, err := env.index.List("not-an-address", 1, 10); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad owner err = %v", err)
	}
}

func TestCampaignIndexSyncFactoryFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.backend.SetError(factoryAddr, "getAllCampaigns", errors.New("rpc timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := env.index.Sync(ctx); err == nil {
		t.Fatal("expected error when the factory cannot be read")
	}
}
