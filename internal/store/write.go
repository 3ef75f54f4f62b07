package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tether/internal/ir"
)

// WriteExchange appends an exchange to the log.
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency - rewriting the
// same position of a run is silently ignored.
//
// The reply is serialized to canonical JSON per RFC 8785.
func (s *Store) WriteExchange(ctx context.Context, ex Exchange) error {
	if ex.RunID == "" {
		return errors.New("write exchange: empty run id")
	}
	if ex.PromptHash == "" {
		ex.PromptHash = ir.PromptHash(ex.Prompt)
	}

	replyJSON, replyHash, err := marshalReply(ex.Reply)
	if err != nil {
		return fmt.Errorf("write exchange: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO exchanges
		(run_id, seq, prompt_hash, prompt, reply, reply_hash, error, generator, exchange_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		ex.RunID,
		ex.Seq,
		ex.PromptHash,
		ex.Prompt,
		replyJSON,
		replyHash,
		ex.Error,
		ex.Generator,
		ir.ExchangeVersion,
	)
	if err != nil {
		return fmt.Errorf("write exchange: %w", err)
	}

	return nil
}
