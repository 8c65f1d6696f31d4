package router

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blues/crowdchain/internal/chain"
	"github.com/blues/crowdchain/internal/chain/chaintest"
	"github.com/blues/crowdchain/internal/config"
	"github.com/blues/crowdchain/internal/database"
	"github.com/blues/crowdchain/internal/handler"
	"github.com/blues/crowdchain/internal/logic"
	"github.com/blues/crowdchain/internal/model"
	"github.com/blues/crowdchain/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

var (
	factoryAddr  = common.HexToAddress(config.DefaultFactoryAddress)
	campaignAddr = common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type testServer struct {
	engine  *gin.Engine
	backend *chaintest.Backend
	wallet  *wallet.Wallet
}

func newTestServer(t *testing.T, connect bool) *testServer {
	t.Helper()
	return newTestServerWithOrigins(t, connect, []string{"*"})
}

func newTestServerWithOrigins(t *testing.T, connect bool, origins []string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := chaintest.NewBackend(11155111)
	manager, err := chain.NewManagerWithBackend(config.ChainConfig{Network: "sepolia"}, backend)
	if err != nil {
		t.Fatal(err)
	}
	backend.Deploy(factoryAddr, chain.MustEmbeddedABI(chain.ContractFactory))
	backend.Deploy(campaignAddr, chain.MustEmbeddedABI(chain.ContractCampaign))

	backend.SetResult(factoryAddr, "owner", ownerAddr)
	backend.SetResult(factoryAddr, "paused", false)
	backend.SetResult(factoryAddr, "getAllCampaigns", []logic.CampaignSummary{
		{CampaignAddress: campaignAddr, Owner: ownerAddr, Name: "Solar Roof", CreationTime: big.NewInt(1_699_000_000)},
	})
	backend.SetResult(factoryAddr, "getUserCampagins", []logic.CampaignSummary{})

	backend.SetResult(campaignAddr, "name", "Solar Roof")
	backend.SetResult(campaignAddr, "description", "Panels for the school")
	backend.SetResult(campaignAddr, "goal", big.NewInt(1e18))
	backend.SetResult(campaignAddr, "deadline", big.NewInt(time.Now().Add(48*time.Hour).Unix()))
	backend.SetResult(campaignAddr, "owner", ownerAddr)
	backend.SetResult(campaignAddr, "getContractBalance", big.NewInt(5e17))
	backend.SetResult(campaignAddr, "getCampaginStatus", uint8(0))
	backend.SetResult(campaignAddr, "getTiers", []logic.Tier{
		{Name: "Bronze", Amount: big.NewInt(1e16), Backers: big.NewInt(4)},
	})
	backend.SetResult(campaignAddr, "backers", big.NewInt(0))

	w := wallet.New(config.WalletConfig{})
	if connect {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatal(err)
		}
		w.ConnectWithKey(key)
	}
	adapter := chain.NewAdapter(backend, w, manager.ChainID())

	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "router.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close(db) })

	txs := logic.NewTransactionLogic(db, manager, adapter)
	factory := logic.NewFactoryLogic(manager, adapter, txs, nil)
	campaigns := logic.NewCampaignLogic(manager, adapter, txs, nil)
	app := &handler.App{
		DB:        db,
		Manager:   manager,
		Wallet:    w,
		Factory:   factory,
		Campaigns: campaigns,
		Tokens:    logic.NewTokenLogic(manager, adapter, txs, nil),
		Txs:       txs,
		Index:     logic.NewCampaignIndexLogic(db, factory, campaigns, nil, manager.ChainID().Int64()),
	}

	cfg := &config.Config{
		Server:  config.ServerConfig{CorsOrigins: origins},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	engine, err := Setup(cfg, app)
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{engine: engine, backend: backend, wallet: w}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) form(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var health map[string]interface{}
	if err := json.Unmarshal(decode(t, w).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["client_status"] != "connected" || health["database"] != "ok" || health["network"] != "Sepolia Testnet" {
		t.Errorf("health = %v", health)
	}
}

func TestWalletEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/api/v1/wallet", "")
	var state handler.WalletResponse
	if err := json.Unmarshal(decode(t, w).Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.Connected || state.HasCredentials {
		t.Errorf("state = %+v", state)
	}

	// 未配置凭据
	if w := s.do(http.MethodPost, "/api/v1/wallet", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("connect status = %d", w.Code)
	}
}

func TestWriteRequiresWallet(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodPost, "/api/v1/factory/pause", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if decode(t, w).Success {
		t.Error("expected failure envelope")
	}
}

func TestFactoryEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodGet, "/api/v1/factory/campaigns", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var campaigns []logic.CampaignSummary
	if err := json.Unmarshal(decode(t, w).Data, &campaigns); err != nil {
		t.Fatal(err)
	}
	if len(campaigns) != 1 || campaigns[0].Name != "Solar Roof" {
		t.Errorf("campaigns = %+v", campaigns)
	}

	w = s.do(http.MethodGet, "/api/v1/factory", "")
	var overview logic.FactoryOverview
	if err := json.Unmarshal(decode(t, w).Data, &overview); err != nil {
		t.Fatal(err)
	}
	if len(overview.Errors) != 0 || overview.Owner != ownerAddr || len(overview.Campaigns) != 1 {
		t.Errorf("overview = %+v", overview)
	}

	if w := s.do(http.MethodGet, "/api/v1/factory/campaigns?owner=nope", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad owner status = %d", w.Code)
	}

	bad := `{"name":"Solar","description":"Panels","goal":"0","durationDays":30}`
	if w := s.do(http.MethodPost, "/api/v1/factory/campaigns", bad); w.Code != http.StatusBadRequest {
		t.Errorf("zero goal status = %d", w.Code)
	}

	good := `{"name":"Solar","description":"Panels","goal":"1.5","durationDays":30}`
	w = s.do(http.MethodPost, "/api/v1/factory/campaigns", good)
	if w.Code != http.StatusAccepted {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var record model.TransactionModel
	if err := json.Unmarshal(decode(t, w).Data, &record); err != nil {
		t.Fatal(err)
	}
	if record.Method != "createCampagin" || record.Hash == "" {
		t.Errorf("record = %+v", record)
	}
}

func TestCampaignFundAndTransactions(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodGet, "/api/v1/campaigns/"+campaignAddr.Hex(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("detail status = %d, body = %s", w.Code, w.Body.String())
	}

	if w := s.do(http.MethodPost, "/api/v1/campaigns/"+campaignAddr.Hex()+"/fund", `{"tierIndex":3}`); w.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d", w.Code)
	}

	w = s.do(http.MethodPost, "/api/v1/campaigns/"+campaignAddr.Hex()+"/fund", `{"tierIndex":0}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("fund status = %d, body = %s", w.Code, w.Body.String())
	}
	var record model.TransactionModel
	if err := json.Unmarshal(decode(t, w).Data, &record); err != nil {
		t.Fatal(err)
	}
	if record.Value != "10000000000000000" {
		t.Errorf("value = %s", record.Value)
	}

	w = s.do(http.MethodGet, "/api/v1/transactions", "")
	var page struct {
		Items []model.TransactionModel `json:"items"`
		Total int64                    `json:"total"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].Hash != record.Hash {
		t.Errorf("page = %+v", page)
	}

	w = s.do(http.MethodGet, "/api/v1/transactions/"+record.Hash+"?wait=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("wait status = %d, body = %s", w.Code, w.Body.String())
	}
	var tx handler.TransactionResponse
	if err := json.Unmarshal(decode(t, w).Data, &tx); err != nil {
		t.Fatal(err)
	}
	if tx.Transaction.Status != model.TransactionStatusConfirmed {
		t.Errorf("status = %s", tx.Transaction.Status)
	}

	missing := common.HexToHash("0xdead").Hex()
	if w := s.do(http.MethodGet, "/api/v1/transactions/"+missing, ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
}

func TestFundingClosedConflict(t *testing.T) {
	s := newTestServer(t, true)
	s.backend.SetResult(campaignAddr, "getCampaginStatus", uint8(1))

	w := s.do(http.MethodPost, "/api/v1/campaigns/"+campaignAddr.Hex()+"/fund", `{"tierIndex":0}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCampaignIndexRoute(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/api/v1/campaigns/index", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestViewsRequireWallet(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "连接钱包") || strings.Contains(w.Body.String(), "Solar Roof") {
		t.Errorf("expected connect page, got %s", w.Body.String())
	}
}

func TestViewsRender(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Solar Roof") {
		t.Fatalf("index status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, "/campaign/"+campaignAddr.Hex(), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Bronze") {
		t.Fatalf("campaign status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, "/campaign/not-an-address", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad address status = %d", w.Code)
	}
}

func TestFormPostRedirects(t *testing.T) {
	s := newTestServer(t, true)

	w := s.form("/campaign/"+campaignAddr.Hex()+"/fund", url.Values{"tierIndex": {"0"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Path != "/campaign/"+campaignAddr.Hex() || loc.Query().Get("tx") == "" {
		t.Errorf("location = %s", loc)
	}

	w = s.form("/campaigns", url.Values{"name": {""}, "description": {"x"}, "goal": {"1"}, "durationDays": {"3"}})
	loc, _ = url.Parse(w.Header().Get("Location"))
	if loc.Path != "/" || loc.Query().Get("error") == "" {
		t.Errorf("location = %s", loc)
	}

	w = s.form("/wallet/connect", url.Values{"next": {"//evil.example"}})
	loc, _ = url.Parse(w.Header().Get("Location"))
	if loc.Path != "/" {
		t.Errorf("open redirect: %s", loc)
	}

	s.form("/wallet/disconnect", nil)
	if s.wallet.Connected() {
		t.Error("wallet still connected")
	}
}

func TestCorsAndMetrics(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	w = s.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "crowdchain_http_requests_total") {
		t.Errorf("metrics status = %d", w.Code)
	}
}

func TestCrossOriginWritesRejected(t *testing.T) {
	s := newTestServer(t, true)
	fund := "/campaign/" + campaignAddr.Hex() + "/fund"

	tests := []struct {
		name   string
		header string
		value  string
		path   string
		body   string
	}{
		{"form post with foreign origin", "Origin", "https://evil.example", fund, "tierIndex=0"},
		{"form post with foreign referer", "Referer", "https://evil.example/page", fund, "tierIndex=0"},
		{"sandboxed origin", "Origin", "null", fund, "tierIndex=0"},
		{"api write with foreign origin", "Origin", "https://evil.example", "/api/v1/factory/pause", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set(tt.header, tt.value)
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
		})
	}
	if sent := s.backend.Sent(); len(sent) != 0 {
		t.Fatalf("%d transactions broadcast for cross-origin requests", len(sent))
	}
}

func TestSameOriginWritesAllowed(t *testing.T) {
	s := newTestServerWithOrigins(t, true, []string{"https://app.crowdchain.example"})

	for _, origin := range []string{"http://example.com", "https://app.crowdchain.example"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/factory/pause", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			t.Errorf("origin %s: status = %d, body = %s", origin, w.Code, w.Body.String())
		}
	}
	if sent := s.backend.Sent(); len(sent) != 2 {
		t.Errorf("sent = %d", len(sent))
	}
}

func TestNoCorsOriginsConfigured(t *testing.T) {
	s := newTestServerWithOrigins(t, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestPaginationReportsEffectivePageSize(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/api/v1/transactions?page=0&page_size=500", "/api/v1/campaigns/index?page=-2&page_size=500"} {
		w := s.do(http.MethodGet, path, "")
		var page handler.PageResponse
		if err := json.Unmarshal(decode(t, w).Data, &page); err != nil {
			t.Fatal(err)
		}
		if page.Page != 1 || page.PageSize != 20 {
			t.Errorf("%s: page = %d, page_size = %d", path, page.Page, page.PageSize)
		}
	}
}

func TestCampaignTiersRoute(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/api/v1/campaigns/"+campaignAddr.Hex()+"/tiers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var tiers []logic.Tier
	if err := json.Unmarshal(decode(t, w).Data, &tiers); err != nil {
		t.Fatal(err)
	}
	if len(tiers) != 1 || tiers[0].Name != "Bronze" || tiers[0].Amount.Int64() != 1e16 {
		t.Errorf("tiers = %+v", tiers)
	}
}

func TestChainListsContracts(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(http.MethodGet, "/api/v1/chain", "")
	var resp handler.ChainResponse
	if err := json.Unmarshal(decode(t, w).Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Contracts[chain.ContractFactory] != factoryAddr.Hex() {
		t.Errorf("contracts = %v", resp.Contracts)
	}
	if resp.Network.ChainId != 11155111 {
		t.Errorf("network = %+v", resp.Network)
	}
}
