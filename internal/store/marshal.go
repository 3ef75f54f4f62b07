package store

import (
	"fmt"

	"github.com/roach88/tether/internal/ir"
)

// marshalReply converts a reply to canonical JSON TEXT for storage.
// A nil reply is stored as the empty object.
func marshalReply(v ir.IRValue) (string, string, error) {
	if v == nil {
		v = ir.NewIRObject()
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", "", fmt.Errorf("marshal reply: %w", err)
	}
	hash, err := ir.ReplyHash(v)
	if err != nil {
		return "", "", fmt.Errorf("hash reply: %w", err)
	}
	return string(data), hash, nil
}

// unmarshalReply parses canonical JSON TEXT back into a reply.
// ir.Parse keeps integers exact beyond 2^53.
func unmarshalReply(data string) (ir.IRValue, error) {
	if data == "" {
		return ir.NewIRObject(), nil
	}
	v, err := ir.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal reply: %w", err)
	}
	return v, nil
}
