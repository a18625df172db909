package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.AddJob("* * * * *", func() {}))
	require.NoError(t, s.AddJob("@every 60m", func() {}))
	assert.Equal(t, 2, s.Len())
}

func TestSchedulerAddJobInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	assert.Error(t, s.AddJob("not a schedule", func() {}))
	assert.Equal(t, 0, s.Len())
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	s.Stop()
}
