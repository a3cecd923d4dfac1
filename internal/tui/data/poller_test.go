package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_StartAccept(t *testing.T) {
	p := NewPoller("stock", 10*time.Second)
	assert.False(t, p.Running())
	assert.Nil(t, p.Schedule())

	require.NotNil(t, p.Start())
	assert.True(t, p.Running())
	assert.Equal(t, 10*time.Second, p.Interval())

	assert.True(t, p.Accept(PollMsg{Tag: "stock", Gen: p.gen}))
	assert.False(t, p.Accept(PollMsg{Tag: "other", Gen: p.gen}))
	assert.NotNil(t, p.Schedule())
}

func TestPoller_StopRejectsInFlightTicks(t *testing.T) {
	p := NewPoller("stock", time.Second)
	p.Start()
	inFlight := PollMsg{Tag: "stock", Gen: p.gen}

	p.Stop()
	assert.False(t, p.Running())
	assert.False(t, p.Accept(inFlight))
	assert.Nil(t, p.Schedule())
}

func TestPoller_RestartRejectsPreviousRun(t *testing.T) {
	p := NewPoller("stock", time.Second)
	p.Start()
	old := PollMsg{Tag: "stock", Gen: p.gen}

	p.Stop()
	p.Start()
	assert.False(t, p.Accept(old))
	assert.True(t, p.Accept(PollMsg{Tag: "stock", Gen: p.gen}))
}
