package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"vault_operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckSchemaStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckSchemaStatus(db)
	if err == nil {
		t.Error("CheckSchemaStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "journal has no schema version (needs migration)" {
		t.Errorf("CheckSchemaStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckSchemaStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	err := CheckSchemaStatus(db)
	if err != nil {
		t.Errorf("CheckSchemaStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckSchemaStatus(db); err != nil {
		t.Errorf("CheckSchemaStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_VaultOperations(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Insert an operation row
	_, err := db.Exec(`
		INSERT INTO vault_operations (op_id, operation, input_path, status, started_at)
		VALUES ('op-1', 'encrypt', '/tmp/file.txt', 'running', datetime('now'))
	`)
	if err != nil {
		t.Fatalf("Failed to insert operation: %v", err)
	}

	var status string
	err = db.QueryRow("SELECT status FROM vault_operations WHERE op_id = 'op-1'").Scan(&status)
	if err != nil {
		t.Errorf("Failed to retrieve operation: %v", err)
	}
	if status != "running" {
		t.Errorf("Retrieved status = %q, want %q", status, "running")
	}
}

func TestSchema_OpIDUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO vault_operations (op_id, operation, input_path, status, started_at)
		VALUES ('op-dup', 'encrypt', '/a', 'running', datetime('now'))
	`)
	if err != nil {
		t.Fatalf("Failed to insert first operation: %v", err)
	}

	// Duplicate op_id should fail due to UNIQUE constraint
	_, err = db.Exec(`
		INSERT INTO vault_operations (op_id, operation, input_path, status, started_at)
		VALUES ('op-dup', 'decrypt', '/b', 'running', datetime('now'))
	`)
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate op_id, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
