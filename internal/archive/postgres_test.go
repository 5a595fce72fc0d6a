package archive

import (
	"strings"
	"testing"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements()
	if len(stmts) != 2 {
		t.Fatalf("expected 2 schema statements, got %d", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE IF NOT EXISTS contact_submissions") {
		t.Fatalf("unexpected first statement: %q", stmts[0])
	}
	if !strings.HasPrefix(stmts[1], "CREATE INDEX IF NOT EXISTS") {
		t.Fatalf("unexpected second statement: %q", stmts[1])
	}
}
