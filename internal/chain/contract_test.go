package chain

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const rawABI = `[{"type":"function","name":"goal","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`

func TestParseABIFormats(t *testing.T) {
	raw, err := ParseABI([]byte(rawABI))
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if _, ok := raw.Methods["goal"]; !ok {
		t.Error("raw ABI missing goal")
	}

	compiled, err := ParseABI([]byte(`{"contractName":"Campaign","abi":` + rawABI + `}`))
	if err != nil {
		t.Fatalf("compiled: %v", err)
	}
	if _, ok := compiled.Methods["goal"]; !ok {
		t.Error("compiled ABI missing goal")
	}

	if _, err := ParseABI([]byte(`not json`)); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestLoadABIFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.json")
	if err := os.WriteFile(path, []byte(rawABI), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadABI(path); err != nil {
		t.Fatalf("LoadABI: %v", err)
	}
	if _, err := LoadABI(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEmbeddedABIs(t *testing.T) {
	cases := map[string][]string{
		ContractFactory:  {"getAllCampaigns", "getUserCampagins", "createCampagin", "togglePause", "owner", "paused"},
		ContractCampaign: {"getTiers", "fund", "addTier", "removeTier", "getCampaginStatus", "backers", "getContractBalance"},
		ContractERC20:    {"decimals", "balanceOf", "transfer"},
	}
	for name, methods := range cases {
		parsed, err := EmbeddedABI(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for _, m := range methods {
			if _, ok := parsed.Methods[m]; !ok {
				t.Errorf("%s ABI missing %s", name, m)
			}
		}
	}
	if _, err := EmbeddedABI("vault"); err == nil {
		t.Error("expected error for unknown embedded ABI")
	}
}

func TestParseLogTransfer(t *testing.T) {
	parsed := MustEmbeddedABI(ContractERC20)
	token := NewContract(ContractERC20, common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"), parsed)

	event := parsed.Events["Transfer"]
	from := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	to := common.HexToAddress("0x00000000000000000000000000000000000000f2")
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(2_500_000))
	if err != nil {
		t.Fatal(err)
	}

	result := token.ParseLog(types.Log{
		Address:     token.GetAddress(),
		Topics:      []common.Hash{event.ID, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        data,
		BlockNumber: 7,
		Index:       2,
	})

	if result["eventName"] != "Transfer" {
		t.Fatalf("eventName = %v", result["eventName"])
	}
	if result["from"] != from || result["to"] != to {
		t.Errorf("from/to = %v/%v", result["from"], result["to"])
	}
	if v, ok := result["value"].(*big.Int); !ok || v.Int64() != 2_500_000 {
		t.Errorf("value = %v", result["value"])
	}
	if result["logIndex"] != uint(2) || result["blockNumber"] != uint64(7) {
		t.Errorf("position = %v/%v", result["blockNumber"], result["logIndex"])
	}
}

func TestParseLogUnknown(t *testing.T) {
	token := NewContract(ContractERC20, common.Address{}, MustEmbeddedABI(ContractERC20))

	if got := token.ParseLog(types.Log{})["eventName"]; got != "Unknown" {
		t.Errorf("no topics: eventName = %v", got)
	}

	sig := common.HexToHash("0xdeadbeef")
	result := token.ParseLog(types.Log{Topics: []common.Hash{sig}})
	if result["eventName"] != "Unknown" || result["signature"] != sig.Hex() {
		t.Errorf("unknown signature result = %v", result)
	}
}

func TestContractAt(t *testing.T) {
	base := NewContract(ContractCampaign, common.Address{}, MustEmbeddedABI(ContractCampaign))
	bound := base.At(testCampaign)
	if bound.GetAddress() != testCampaign || bound.GetName() != ContractCampaign {
		t.Fatalf("bound = %s %s", bound.GetName(), bound.GetAddress().Hex())
	}
	if base.GetAddress() != (common.Address{}) {
		t.Fatal("At must not modify the template")
	}
}
