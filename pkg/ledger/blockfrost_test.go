package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

const vaultAddr cardano.Address = "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw"

func testIndex(url string) BlockfrostIndex {
	return BlockfrostIndex{url: url, projectID: "test", client: &http.Client{Timeout: 5 * time.Second}}
}

func TestClassifySubmitError(t *testing.T) {
	cases := map[string]string{
		"MissingScriptWitnessesUTXOW (ScriptHash ...)": "MissingScriptWitnessesUTXOW",
		"BadInputsUTxO [...]":                          "BadInputsUTxO",
		"FeeTooSmallUTxO 170000 160000":                "FeeTooSmallUTxO",
		"ValueNotConservedUTxO ...":                    "ValueNotConservedUTxO",
	}
	for msg, rule := range cases {
		err := ClassifySubmitError(msg)
		if !vault.IsError(err, vault.LedgerRejection) {
			t.Errorf("%s: expected LedgerRejection, got %v", rule, err)
			continue
		}
		if !strings.Contains(err.Error(), rule) {
			t.Errorf("%s: rule name missing from %q", rule, err.Error())
		}
		if vault.Retryable(err) {
			t.Errorf("%s: ledger rejections must not be retryable", rule)
		}
	}
	if err := ClassifySubmitError("something novel"); !vault.IsError(err, vault.LedgerRejection) {
		t.Errorf("unknown rejections still classify as LedgerRejection: %v", err)
	}
}

func TestGetUtxosParsesAmounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/utxos") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[
			{"tx_hash": "` + strings.Repeat("11", 32) + `", "output_index": 0,
			 "amount": [{"unit": "lovelace", "quantity": "10000000"},
			            {"unit": "deadbeef", "quantity": "42"}]},
			{"tx_hash": "` + strings.Repeat("22", 32) + `", "output_index": 1,
			 "amount": [{"unit": "lovelace", "quantity": "1000000"}]}
		]`))
	}))
	defer srv.Close()

	utxos, err := testIndex(srv.URL).GetUtxos(context.Background(), vaultAddr)
	if err != nil {
		t.Fatalf("GetUtxos: %v", err)
	}
	if len(utxos) != 2 {
		t.Fatalf("utxos = %d", len(utxos))
	}
	if utxos[0].Value.Lovelace != 10_000_000 || utxos[0].Value.Assets["deadbeef"] != 42 {
		t.Fatalf("first utxo parsed wrong: %+v", utxos[0])
	}
	if utxos[1].OutputIndex != 1 || utxos[1].Value.Lovelace != 1_000_000 {
		t.Fatalf("second utxo parsed wrong: %+v", utxos[1])
	}
}

func TestStatusCodeMapping(t *testing.T) {
	var code int
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		w.Write([]byte(body))
	}))
	defer srv.Close()
	idx := testIndex(srv.URL)

	code, body = 404, `{"status_code":404,"message":"not found"}`
	_, err := idx.GetUtxos(context.Background(), vaultAddr)
	if !vault.IsNotFoundError(err) {
		t.Fatalf("404: expected NotFound, got %v", err)
	}

	code, body = 500, `{"status_code":500,"message":"boom"}`
	_, err = idx.GetUtxos(context.Background(), vaultAddr)
	if !vault.IsError(err, vault.NetworkError) || !vault.Retryable(err) {
		t.Fatalf("500: expected retryable NetworkError, got %v", err)
	}

	code, body = 403, `{"status_code":403,"message":"invalid project token"}`
	_, err = idx.GetUtxos(context.Background(), vaultAddr)
	if !vault.IsError(err, vault.NotAvailable) {
		t.Fatalf("403: expected NotAvailable, got %v", err)
	}

	code, body = 400, `{"status_code":400,"message":"BadInputsUTxO"}`
	_, err = idx.SubmitTx(context.Background(), "8200a0")
	if !vault.IsError(err, vault.LedgerRejection) {
		t.Fatalf("400 on submit: expected LedgerRejection, got %v", err)
	}
}

func TestSubmitReturnsTxHash(t *testing.T) {
	want := strings.Repeat("ab", 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/cbor" {
			t.Errorf("submit content type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("project_id") != "test" {
			t.Errorf("project_id header missing")
		}
		w.Write([]byte(`"` + want + `"`))
	}))
	defer srv.Close()

	got, err := testIndex(srv.URL).SubmitTx(context.Background(), "8200a0")
	if err != nil {
		t.Fatalf("SubmitTx: %v", err)
	}
	if got != want {
		t.Fatalf("tx hash = %s", got)
	}
}

func TestGetTxStatusMempool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_code":404,"message":"not found"}`, 404)
	}))
	defer srv.Close()

	status, err := testIndex(srv.URL).GetTxStatus(context.Background(), strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("a tx the indexer has not seen is pending, not an error: %v", err)
	}
	if status.InLedger {
		t.Fatalf("unseen tx reported as in-ledger")
	}
}
