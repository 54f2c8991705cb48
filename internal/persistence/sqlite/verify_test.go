// SPDX-License-Identifier: MIT

package sqlite

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifyIntegrity_DetectsCorruption(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "corruptible.sqlite")

	cfg := DefaultConfig()
	db, err := Open(dbPath, cfg)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	// Create enough pages that an overwrite at page 2 hits real data.
	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, data TEXT);")
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	filler := strings.Repeat("A", 100)
	for i := 0; i < 100; i++ {
		if _, err := db.Exec("INSERT INTO test (data) VALUES (?);", filler); err != nil {
			t.Fatalf("Failed to insert row: %v", err)
		}
	}
	db.Close()

	issues, err := VerifyIntegrity(dbPath, "quick")
	if err != nil {
		t.Fatalf("Initial verification failed with system error: %v", err)
	}
	if issues != nil {
		t.Fatalf("Initial verification failed: %v", issues)
	}

	// Simulate corruption: overwrite 100 bytes at offset 4096 (second page).
	f, err := os.OpenFile(dbPath, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("Failed to open file for corruption: %v", err)
	}

	corruptData := make([]byte, 100)
	_, _ = rand.Read(corruptData)

	_, err = f.WriteAt(corruptData, 4096)
	f.Close()
	if err != nil {
		t.Fatalf("Failed to write corrupt data: %v", err)
	}

	// Full mode detects page-level corruption deterministically.
	issues, err = VerifyIntegrity(dbPath, "full")
	if err != nil {
		t.Fatalf("Verification after corruption failed with system error: %v", err)
	}

	if issues == nil {
		t.Error("Verification passed on a corrupted database")
	} else {
		t.Logf("Detected expected corruption issues: %v", issues)
	}
}

func TestVerifyIntegrity_HealthyDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "healthy.sqlite")

	db, err := Open(dbPath, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY);"); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	db.Close()

	for _, mode := range []string{"quick", "full"} {
		issues, err := VerifyIntegrity(dbPath, mode)
		if err != nil {
			t.Fatalf("mode %s: unexpected system error: %v", mode, err)
		}
		if issues != nil {
			t.Errorf("mode %s: expected healthy database, got issues: %v", mode, issues)
		}
	}
}
