package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct {
	ID string `json:"id"`
}

func TestTypedMessageHandler(t *testing.T) {
	var processed []string
	h := &TypedMessageHandler[ping]{
		Validate: func(p *ping) bool { return p.ID != "" },
		Process: func(_ context.Context, p *ping) error {
			if p.ID == "fail" {
				return errors.New("boom")
			}
			processed = append(processed, p.ID)
			return nil
		},
		AlwaysMark: true,
	}
	ctx := context.Background()

	mark, err := h.HandleMessage(ctx, []byte(`{"id":"a"}`))
	assert.True(t, mark)
	assert.NoError(t, err)

	mark, err = h.HandleMessage(ctx, []byte(`not json`))
	assert.True(t, mark, "undecodable messages are skipped")
	assert.Error(t, err)

	mark, err = h.HandleMessage(ctx, []byte(`{}`))
	assert.True(t, mark)
	assert.NoError(t, err)

	mark, err = h.HandleMessage(ctx, []byte(`{"id":"fail"}`))
	assert.False(t, mark, "processing failures are retried")
	assert.Error(t, err)

	assert.Equal(t, []string{"a"}, processed)
}
