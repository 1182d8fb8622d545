package webapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/ledger"
	"github.com/misterlabs/agentvault/pkg/signer"
	"github.com/misterlabs/agentvault/pkg/store"
)

const (
	testScriptHex = "4e4d01000033222220051200120011"
	vaultAddr     = "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw"
	payoutAddr    = "addr_test1wrrdx3xfy2n7rnrcalp37852a8yeyu3pg7rk0lu0c6qvgaq8yg6l2"
)

func TestWebAPI(t *testing.T) {
	admin, pub, chain := newTestRig(t)

	// Register the vault script; identity must be derived, not trusted
	var entry vault.ContractEntry
	request(t, admin, "/register",
		`{"purpose":"agent_vault","script_hex":"`+testScriptHex+`","script_version":"PlutusV2","withdraw_constr":1}`,
		&entry)
	if entry.ScriptHash != "83a2d61669af82b7eb7d4ad30337951316e8a2729574fc37dfd50aa2" {
		t.Fatalf("Register did not derive the script hash: %s", entry.ScriptHash)
	}
	if string(entry.Address) != vaultAddr {
		t.Fatalf("Register did not derive the address: %s", entry.Address)
	}
	if entry.Status != vault.StatusTesting {
		t.Fatalf("new entries start in testing: %s", entry.Status)
	}

	// List contains it
	var list []vault.ContractEntry
	request(t, admin, "/contracts", "", &list)
	if len(list) != 1 || list[0].ID != entry.ID {
		t.Fatalf("List did not return the entry: %+v", list)
	}

	// Fund the address and check status
	chain.Fund(vault.Utxo{
		TxHash:      strings.Repeat("11", 32),
		OutputIndex: 0,
		Address:     entry.Address,
		Value:       vault.Value{Lovelace: 10_000_000},
	})
	var status vault.ContractStatusResponse
	request(t, admin, "/contract/"+entry.ID, "", &status)
	if status.BalanceLovelace != 10_000_000 || status.UtxoCount != 1 {
		t.Fatalf("Status did not pick up the funding: %+v", status)
	}

	// Public surface: funding address and QR
	var addr map[string]string
	request(t, pub, "/contract/"+entry.ID+"/address", "", &addr)
	if addr["address"] != vaultAddr {
		t.Fatalf("public address endpoint wrong: %v", addr)
	}
	res := rawRequest(t, pub, "GET", "/contract/"+entry.ID+"/qr.png", "")
	if res.StatusCode != 200 || res.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("QR endpoint: %d %s", res.StatusCode, res.Header.Get("Content-Type"))
	}

	// Test withdrawal promotes testing -> active
	var result vault.WithdrawResult
	request(t, admin, "/contract/"+entry.ID+"/withdraw",
		`{"to":"`+payoutAddr+`","amount":"5","test":true}`, &result)
	if !result.Confirmed {
		t.Fatalf("withdrawal not confirmed: %+v", result)
	}
	if result.AmountLovelace != 5_000_000 {
		t.Fatalf("amount = %d", result.AmountLovelace)
	}
	request(t, admin, "/contract/"+entry.ID, "", &status)
	if status.Entry.Status != vault.StatusActive {
		t.Fatalf("confirmed test withdrawal should promote to active: %s", status.Entry.Status)
	}
	if len(status.Audit) != 1 {
		t.Fatalf("audit trail entries = %d", len(status.Audit))
	}
}

func TestWebAPIRejectsClaimedMismatch(t *testing.T) {
	admin, _, _ := newTestRig(t)
	res := rawRequest(t, admin, "POST", "/register",
		`{"purpose":"agent_vault","script_hex":"`+testScriptHex+`","script_version":"PlutusV2",
		  "script_hash":"`+strings.Repeat("00", 28)+`"}`)
	if res.StatusCode != 422 {
		t.Fatalf("expected 422 for a mismatched claim, got %d", res.StatusCode)
	}
}

func TestWebAPIWithdrawInsufficient(t *testing.T) {
	admin, _, chain := newTestRig(t)
	var entry vault.ContractEntry
	request(t, admin, "/register",
		`{"purpose":"agent_vault","script_hex":"`+testScriptHex+`","script_version":"PlutusV2","withdraw_constr":1}`,
		&entry)
	chain.Fund(vault.Utxo{
		TxHash:      strings.Repeat("11", 32),
		OutputIndex: 0,
		Address:     entry.Address,
		Value:       vault.Value{Lovelace: 11_000_000},
	})
	res := rawRequest(t, admin, "POST", "/contract/"+entry.ID+"/withdraw",
		`{"to":"`+payoutAddr+`","amount_lovelace":11000001}`)
	if res.StatusCode != 402 {
		t.Fatalf("expected 402 for insufficient funds, got %d", res.StatusCode)
	}
}

func TestWebAPIBadStatusTransition(t *testing.T) {
	admin, _, _ := newTestRig(t)
	var entry vault.ContractEntry
	request(t, admin, "/register",
		`{"purpose":"agent_vault","script_hex":"`+testScriptHex+`","script_version":"PlutusV2"}`,
		&entry)
	res := rawRequest(t, admin, "POST", "/contract/"+entry.ID+"/status",
		`{"status":"deprecated","notes":"rotate"}`)
	if res.StatusCode != 200 {
		t.Fatalf("testing -> deprecated should pass: %d", res.StatusCode)
	}
	res = rawRequest(t, admin, "POST", "/contract/"+entry.ID+"/status",
		`{"status":"active","notes":"revive"}`)
	if res.StatusCode != 409 {
		t.Fatalf("expected 409 for a forbidden transition, got %d", res.StatusCode)
	}
}

// Helpers.

func request(t *testing.T, mux *httprouter.Router, path string, body string, out any) *http.Response {
	method := "GET"
	if body != "" {
		method = "POST"
	}
	res := rawRequest(t, mux, method, path, body)
	if res.StatusCode != 200 {
		t.Fatalf("%s request failed: %v", path, res.StatusCode)
	}
	err := json.NewDecoder(res.Body).Decode(out)
	if err != nil {
		t.Fatalf("%s bad json: %v", path, err)
	}
	return res
}

func rawRequest(t *testing.T, mux *httprouter.Router, method, path string, body string) *http.Response {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	res := httptest.NewRecorder()
	mux.ServeHTTP(res, req)
	return res.Result()
}

func newTestRig(t *testing.T) (adminMux *httprouter.Router, pubMux *httprouter.Router, chain *ledger.MockIndex) {
	config := vault.TestConfig()
	db, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("Cannot create in-memory database: %v", err)
	}
	t.Cleanup(db.Close)
	chain = ledger.NewMockIndex()
	signer, err := signer.Generate()
	if err != nil {
		t.Fatalf("Cannot create signer: %v", err)
	}
	api := vault.NewAPI(db, chain, signer, nil, config).
		WithTiming(time.Millisecond, 100*time.Millisecond, time.Millisecond)

	web := WebAPI{api: api, config: config}
	adminMux, pubMux = web.createRouters()
	return
}
