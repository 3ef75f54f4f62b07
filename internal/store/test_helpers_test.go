package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/tether/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestExchange creates an exchange whose reply is {"x": x}.
func createTestExchange(runID string, seq int64, prompt string, x int64) Exchange {
	return Exchange{
		RunID:     runID,
		Seq:       seq,
		Prompt:    prompt,
		Reply:     ir.NewIRObject(ir.O("x", ir.IRInt(x))),
		Generator: "test",
	}
}
