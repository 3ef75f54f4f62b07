package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptHashDeterministic(t *testing.T) {
	h1 := PromptHash("Fill in **valid JSON**")
	h2 := PromptHash("Fill in **valid JSON**")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, PromptHash("Fill in valid JSON"))
}

func TestPromptHashNFC(t *testing.T) {
	assert.Equal(t, PromptHash("caf\u00e9"), PromptHash("cafe\u0301"))
}

func TestReplyHashIgnoresKeyOrder(t *testing.T) {
	a := NewIRObject(O("x", IRInt(1)), O("y", IRInt(2)))
	b := NewIRObject(O("y", IRInt(2)), O("x", IRInt(1)))

	ha, err := ReplyHash(a)
	require.NoError(t, err)
	hb, err := ReplyHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainPrompt, data), hashWithDomain(DomainReply, data))
}
