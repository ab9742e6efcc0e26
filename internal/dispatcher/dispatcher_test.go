package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/internal/engine"
)

type fakeSource struct {
	promoted     int
	promoteErr   error
	claimedJob   *engine.Job
	claimErr     error
	claimedAtArg time.Time
	calls        []string
}

func (f *fakeSource) PromoteDue(now time.Time) (int, error) {
	f.calls = append(f.calls, "promote")
	return f.promoted, f.promoteErr
}

func (f *fakeSource) ClaimNext(now time.Time) (*engine.Job, error) {
	f.calls = append(f.calls, "claim")
	f.claimedAtArg = now
	return f.claimedJob, f.claimErr
}

func TestNext_PromotesBeforeClaiming(t *testing.T) {
	job := &engine.Job{ID: "job-1"}
	src := &fakeSource{promoted: 2, claimedJob: job}
	d := New(src)

	now := time.Now()
	got, err := d.Next(now)
	require.NoError(t, err)
	assert.Same(t, job, got)
	assert.Equal(t, now, src.claimedAtArg)
	assert.Equal(t, []string{"promote", "claim"}, src.calls)
}

func TestNext_NoJobAvailable(t *testing.T) {
	src := &fakeSource{}
	d := New(src)

	got, err := d.Next(time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}
