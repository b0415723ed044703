package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
)

func TestNewWithoutURLIsNop(t *testing.T) {
	p, err := New(config.NATSConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), SubjectUpdateCreated, UpdateCreated{ID: 1}))
	assert.NoError(t, p.Close())
}

func TestNewUnreachableServer(t *testing.T) {
	_, err := New(config.NATSConfig{URL: "nats://127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "rprepo.update.created", Subject("rprepo", SubjectUpdateCreated))
	assert.Equal(t, "update.created", Subject("", SubjectUpdateCreated))
}
