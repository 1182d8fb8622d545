package store

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	vault "github.com/misterlabs/agentvault/pkg"
	"github.com/misterlabs/agentvault/pkg/cardano"

	_ "github.com/mattn/go-sqlite3"
)

var SETUP_SQL string = `
CREATE TABLE IF NOT EXISTS contract (
	id TEXT NOT NULL PRIMARY KEY,
	purpose TEXT NOT NULL,
	script_hex TEXT NOT NULL,
	script_version INTEGER NOT NULL,
	script_hash TEXT NOT NULL,
	address TEXT NOT NULL UNIQUE,
	withdraw_constr INTEGER NOT NULL DEFAULT 0,
	ex_units_mem INTEGER NOT NULL DEFAULT 0,
	ex_units_steps INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	deployment_tx_hash TEXT NOT NULL DEFAULT '',
	balance_snapshot INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS contract_purpose_i ON contract (purpose, status);

CREATE TABLE IF NOT EXISTS contract_audit (
	contract_id TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS contract_audit_i ON contract_audit (contract_id, at);
`

// interface guard ensures SQLite implements vault.Store
var _ vault.Store = &SQLite{}

type SQLite struct {
	db *sql.DB
	// sqlite allows one writer at a time; serialize here rather than
	// surface SQLITE_BUSY to callers
	mu sync.Mutex
}

// NewSQLite returns a vault.Store implementor that uses sqlite
func NewSQLite(fileName string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		return nil, dbErr(err, "open")
	}
	// one connection: sqlite is single-writer, and :memory: databases
	// exist per-connection
	db.SetMaxOpenConns(1)
	// init tables / indexes
	if _, err = db.Exec(SETUP_SQL); err != nil {
		return nil, dbErr(err, "init")
	}
	return &SQLite{db: db}, nil
}

// Defer this until shutdown
func (s *SQLite) Close() {
	s.db.Close()
}

func dbErr(err error, where string) error {
	return vault.NewErr(vault.DBConflict, "store %s: %v", where, err)
}

const contractCols = `id, purpose, script_hex, script_version, script_hash, address,
	withdraw_constr, ex_units_mem, ex_units_steps, status,
	deployment_tx_hash, balance_snapshot, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (vault.ContractEntry, error) {
	var e vault.ContractEntry
	var version int
	var status string
	err := row.Scan(&e.ID, &e.Purpose, &e.ScriptHex, &version, &e.ScriptHash, &e.Address,
		&e.WithdrawConstr, &e.ExUnitsMem, &e.ExUnitsSteps, &status,
		&e.DeploymentTxHash, &e.BalanceSnapshot, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return vault.ContractEntry{}, err
	}
	e.ScriptVersion = cardano.ScriptVersion(version)
	e.Status = vault.ContractStatus(status)
	return e, nil
}

func (s *SQLite) AddContract(e vault.ContractEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO contract (`+contractCols+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Purpose, e.ScriptHex, int(e.ScriptVersion), e.ScriptHash, string(e.Address),
		e.WithdrawConstr, e.ExUnitsMem, e.ExUnitsSteps, string(e.Status),
		e.DeploymentTxHash, e.BalanceSnapshot, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return vault.NewErr(vault.AlreadyExists, "contract id or address already registered: %v", err)
		}
		return dbErr(err, "add contract")
	}
	return nil
}

func (s *SQLite) GetContract(id string) (vault.ContractEntry, error) {
	row := s.db.QueryRow(`SELECT `+contractCols+` FROM contract WHERE id = ?`, id)
	e, err := scanContract(row)
	if err == sql.ErrNoRows {
		return vault.ContractEntry{}, vault.NewErr(vault.NotFound, "no contract with id %s", id)
	}
	if err != nil {
		return vault.ContractEntry{}, dbErr(err, "get contract")
	}
	return e, nil
}

func (s *SQLite) GetActiveContract(purpose string) (vault.ContractEntry, error) {
	row := s.db.QueryRow(`SELECT `+contractCols+` FROM contract
		WHERE purpose = ? AND status = ? ORDER BY updated_at DESC LIMIT 1`,
		purpose, string(vault.StatusActive))
	e, err := scanContract(row)
	if err == sql.ErrNoRows {
		return vault.ContractEntry{}, vault.NewErr(vault.NotFound, "no active contract for purpose %q", purpose)
	}
	if err != nil {
		return vault.ContractEntry{}, dbErr(err, "get active contract")
	}
	return e, nil
}

func (s *SQLite) ListContracts() ([]vault.ContractEntry, error) {
	rows, err := s.db.Query(`SELECT ` + contractCols + ` FROM contract ORDER BY created_at DESC`)
	if err != nil {
		return nil, dbErr(err, "list contracts")
	}
	defer rows.Close()
	out := []vault.ContractEntry{}
	for rows.Next() {
		e, err := scanContract(rows)
		if err != nil {
			return nil, dbErr(err, "list contracts scan")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateContractStatus enforces the transition rules inside the write
// transaction: the check and the update see the same row.
func (s *SQLite) UpdateContractStatus(id string, to vault.ContractStatus, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr(err, "begin")
	}
	defer tx.Rollback()

	var from string
	err = tx.QueryRow(`SELECT status FROM contract WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return vault.NewErr(vault.NotFound, "no contract with id %s", id)
	}
	if err != nil {
		return dbErr(err, "read status")
	}
	if !vault.ValidTransition(vault.ContractStatus(from), to) {
		return vault.NewErr(vault.BadTransition, "cannot move contract %s from %s to %s", id, from, to)
	}
	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE contract SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), now, id); err != nil {
		return dbErr(err, "update status")
	}
	if _, err := tx.Exec(`INSERT INTO contract_audit (contract_id, from_status, to_status, notes, at)
		VALUES (?,?,?,?,?)`, id, from, string(to), notes, now); err != nil {
		return dbErr(err, "append audit")
	}
	if err := tx.Commit(); err != nil {
		return dbErr(err, "commit")
	}
	return nil
}

func (s *SQLite) SetDeploymentTx(id string, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateField(id, `deployment_tx_hash`, txHash)
}

func (s *SQLite) SetBalanceSnapshot(id string, lovelace uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateField(id, `balance_snapshot`, lovelace)
}

func (s *SQLite) updateField(id string, column string, value any) error {
	res, err := s.db.Exec(`UPDATE contract SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id)
	if err != nil {
		return dbErr(err, "update "+column)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return vault.NewErr(vault.NotFound, "no contract with id %s", id)
	}
	return nil
}

func (s *SQLite) GetAuditTrail(id string) ([]vault.StatusChange, error) {
	rows, err := s.db.Query(`SELECT contract_id, from_status, to_status, notes, at
		FROM contract_audit WHERE contract_id = ? ORDER BY at ASC`, id)
	if err != nil {
		return nil, dbErr(err, "audit trail")
	}
	defer rows.Close()
	out := []vault.StatusChange{}
	for rows.Next() {
		var c vault.StatusChange
		var from, to string
		if err := rows.Scan(&c.ContractID, &from, &to, &c.Notes, &c.At); err != nil {
			return nil, dbErr(err, "audit trail scan")
		}
		c.From = vault.ContractStatus(from)
		c.To = vault.ContractStatus(to)
		out = append(out, c)
	}
	return out, rows.Err()
}
