package store

import (
	"testing"
	"time"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func entry(id string, addr cardano.Address) vault.ContractEntry {
	now := time.Now().UTC()
	return vault.ContractEntry{
		ID:             id,
		Purpose:        "agent_vault",
		ScriptHex:      "4e4d01000033222220051200120011",
		ScriptVersion:  cardano.ScriptV2,
		ScriptHash:     "83a2d61669af82b7eb7d4ad30337951316e8a2729574fc37dfd50aa2",
		Address:        addr,
		WithdrawConstr: 1,
		Status:         vault.StatusTesting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAddAndGetContract(t *testing.T) {
	s := newTestStore(t)
	e := entry("c1", "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw")
	if err := s.AddContract(e); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	got, err := s.GetContract("c1")
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if got.ScriptHash != e.ScriptHash || got.Address != e.Address ||
		got.ScriptVersion != cardano.ScriptV2 || got.WithdrawConstr != 1 {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if got.Status != vault.StatusTesting {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestAddContractDuplicate(t *testing.T) {
	s := newTestStore(t)
	e := entry("c1", "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw")
	if err := s.AddContract(e); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	if err := s.AddContract(e); !vault.IsError(err, vault.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	// same address under a different id is also a duplicate
	e2 := e
	e2.ID = "c2"
	if err := s.AddContract(e2); !vault.IsError(err, vault.AlreadyExists) {
		t.Fatalf("expected AlreadyExists for duplicate address, got %v", err)
	}
}

func TestGetContractNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetContract("nope"); !vault.IsNotFoundError(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStatusTransitionsAndAudit(t *testing.T) {
	s := newTestStore(t)
	e := entry("c1", "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw")
	if err := s.AddContract(e); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	if err := s.UpdateContractStatus("c1", vault.StatusActive, "test withdrawal confirmed"); err != nil {
		t.Fatalf("testing -> active: %v", err)
	}
	if err := s.UpdateContractStatus("c1", vault.StatusTesting, "revert"); !vault.IsError(err, vault.BadTransition) {
		t.Fatalf("active -> testing must be rejected, got %v", err)
	}
	if err := s.UpdateContractStatus("c1", vault.StatusStuck, "identity mismatch"); err != nil {
		t.Fatalf("active -> stuck: %v", err)
	}
	if err := s.UpdateContractStatus("c1", vault.StatusActive, "unstick"); !vault.IsError(err, vault.BadTransition) {
		t.Fatalf("stuck is terminal, got %v", err)
	}

	trail, err := s.GetAuditTrail("c1")
	if err != nil {
		t.Fatalf("GetAuditTrail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(trail))
	}
	if trail[0].From != vault.StatusTesting || trail[0].To != vault.StatusActive {
		t.Fatalf("first audit entry wrong: %+v", trail[0])
	}
	if trail[1].To != vault.StatusStuck || trail[1].Notes != "identity mismatch" {
		t.Fatalf("second audit entry wrong: %+v", trail[1])
	}
}

func TestGetActiveContract(t *testing.T) {
	s := newTestStore(t)
	e := entry("c1", "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw")
	if err := s.AddContract(e); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	if _, err := s.GetActiveContract("agent_vault"); !vault.IsNotFoundError(err) {
		t.Fatalf("testing entry must not be returned as active, got %v", err)
	}
	if err := s.UpdateContractStatus("c1", vault.StatusActive, ""); err != nil {
		t.Fatalf("promote: %v", err)
	}
	got, err := s.GetActiveContract("agent_vault")
	if err != nil {
		t.Fatalf("GetActiveContract: %v", err)
	}
	if got.ID != "c1" {
		t.Fatalf("active contract = %s", got.ID)
	}
}

func TestSnapshotAndDeploymentFields(t *testing.T) {
	s := newTestStore(t)
	e := entry("c1", "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw")
	if err := s.AddContract(e); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	if err := s.SetBalanceSnapshot("c1", 11_000_000); err != nil {
		t.Fatalf("SetBalanceSnapshot: %v", err)
	}
	if err := s.SetDeploymentTx("c1", "feedface"); err != nil {
		t.Fatalf("SetDeploymentTx: %v", err)
	}
	got, _ := s.GetContract("c1")
	if got.BalanceSnapshot != 11_000_000 || got.DeploymentTxHash != "feedface" {
		t.Fatalf("fields not persisted: %+v", got)
	}
	if err := s.SetBalanceSnapshot("nope", 1); !vault.IsNotFoundError(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestListContracts(t *testing.T) {
	s := newTestStore(t)
	a := entry("c1", "addr_test1wzp694skdxhc9dlt049dxqehj5f3d69zw22hflphml2s4gszeedxw")
	b := entry("c2", "addr_test1wrrdx3xfy2n7rnrcalp37852a8yeyu3pg7rk0lu0c6qvgaq8yg6l2")
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	if err := s.AddContract(a); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	if err := s.AddContract(b); err != nil {
		t.Fatalf("AddContract: %v", err)
	}
	list, err := s.ListContracts()
	if err != nil {
		t.Fatalf("ListContracts: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c2" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}
