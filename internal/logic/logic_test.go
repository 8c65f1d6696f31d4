package logic

import (
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/chain/chaintest"
	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/database"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

var (
	factoryAddr   = common.HexToAddress(config.DefaultFactoryAddress)
	campaignAddr  = common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	campaignAddr2 = common.HexToAddress("0x00000000000000000000000000000000000c0ff2")
	ownerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	fixedNow      = time.Unix(1_700_000_000, 0)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func milliEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e15))
}

type testEnv struct {
	backend   *chaintest.Backend
	manager   *chain.Manager
	adapter   *chain.Adapter
	wallet    *wallet.Wallet
	db        *gorm.DB
	tokenAddr common.Address

	txs       *TransactionLogic
	factory   *FactoryLogic
	campaigns *CampaignLogic
	tokens    *TokenLogic
	index     *CampaignIndexLogic
}

func newTestEnv(t *testing.T, connect bool) *testEnv {
	t.Helper()

	backend := chaintest.NewBackend(11155111)
	manager, err := chain.NewManagerWithBackend(config.ChainConfig{Network: "sepolia"}, backend)
	if err != nil {
		t.Fatal(err)
	}
	token, err := manager.GetContract(chain.ContractERC20)
	if err != nil {
		t.Fatal(err)
	}
	backend.Deploy(factoryAddr, chain.MustEmbeddedABI(chain.ContractFactory))
	backend.Deploy(campaignAddr, chain.MustEmbeddedABI(chain.ContractCampaign))
	backend.Deploy(campaignAddr2, chain.MustEmbeddedABI(chain.ContractCampaign))
	backend.Deploy(token.GetAddress(), chain.MustEmbeddedABI(chain.ContractERC20))

	w := wallet.New(config.WalletConfig{})
	if connect {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatal(err)
		}
		w.ConnectWithKey(key)
	}

	adapter := chain.NewAdapter(backend, w, manager.ChainID())
	adapter.SetPollInterval(5 * time.Millisecond)

	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "logic.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close(db) })

	pool, err := ants.NewPool(8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Release)

	env := &testEnv{
		backend:   backend,
		manager:   manager,
		adapter:   adapter,
		wallet:    w,
		db:        db,
		tokenAddr: token.GetAddress(),
	}
	env.txs = NewTransactionLogic(db, manager, adapter)
	env.factory = NewFactoryLogic(manager, adapter, env.txs, pool)
	env.campaigns = NewCampaignLogic(manager, adapter, env.txs, pool)
	env.campaigns.now = func() time.Time { return fixedNow }
	env.tokens = NewTokenLogic(manager, adapter, env.txs, pool)
	env.index = NewCampaignIndexLogic(db, env.factory, env.campaigns, pool, manager.ChainID().Int64())
	return env
}

type campaignFixture struct {
	name     string
	goal     *big.Int
	balance  *big.Int
	deadline time.Time
	status   uint8
	tiers    []Tier
}

func (e *testEnv) setCampaign(addr common.Address, f campaignFixture) {
	e.backend.SetResult(addr, "name", f.name)
	e.backend.SetResult(addr, "description", f.name+" description")
	e.backend.SetResult(addr, "goal", f.goal)
	e.backend.SetResult(addr, "deadline", big.NewInt(f.deadline.Unix()))
	e.backend.SetResult(addr, "owner", ownerAddr)
	e.backend.SetResult(addr, "getContractBalance", f.balance)
	e.backend.SetResult(addr, "getCampaginStatus", f.status)
	e.backend.SetResult(addr, "getTiers", f.tiers)
	e.backend.SetResult(addr, "backers", milliEther(20))
}

func activeFixture() campaignFixture {
	return campaignFixture{
		name:     "Solar Roof",
		goal:     ether(1),
		balance:  milliEther(500),
		deadline: fixedNow.Add(48 * time.Hour),
		status:   0,
		tiers: []Tier{
			{Name: "Bronze", Amount: milliEther(10), Backers: big.NewInt(4)},
			{Name: "Gold", Amount: milliEther(100), Backers: big.NewInt(1)},
		},
	}
}

func (e *testEnv) setFactory(all, mine []CampaignSummary) {
	e.backend.SetResult(factoryAddr, "owner", ownerAddr)
	e.backend.SetResult(factoryAddr, "paused", false)
	e.backend.SetResult(factoryAddr, "getAllCampaigns", all)
	e.backend.SetResult(factoryAddr, "getUserCampagins", mine)
}

func summaries() []CampaignSummary {
	return []CampaignSummary{
		{CampaignAddress: campaignAddr, Owner: ownerAddr, Name: "Solar Roof", CreationTime: big.NewInt(1_699_000_000)},
		{CampaignAddress: campaignAddr2, Owner: common.HexToAddress("0xb2"), Name: "Library", CreationTime: big.NewInt(1_699_500_000)},
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := ParseAddress("0x1234"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short address err = %v", err)
	}
	got, err := ParseAddress(" " + campaignAddr.Hex() + " ")
	if err != nil || got != campaignAddr {
		t.Errorf("ParseAddress = %s, %v", got.Hex(), err)
	}
}

func TestRunConcurrentCollectsErrors(t *testing.T) {
	pool, err := ants.NewPool(2)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release()

	var a, b int
	errs := runConcurrent(pool, map[string]func() error{
		"a":    func() error { a = 1; return nil },
		"b":    func() error { b = 2; return nil },
		"fail": func() error { return errors.New("boom") },
	})
	if a != 1 || b != 2 {
		t.Fatalf("reads not executed: a=%d b=%d", a, b)
	}
	if len(errs) != 1 || errs["fail"] != "boom" {
		t.Fatalf("errs = %v", errs)
	}
}
