package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/queuectl/queuectl/internal/engine"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "queuectl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertJob(t *testing.T, s *Store, id string, now time.Time, priority int) *engine.Job {
	t.Helper()
	j := &engine.Job{ID: id, Command: "echo hi", MaxRetries: 3, Priority: priority}
	require.NoError(t, s.Insert(j, now))
	return j
}

func TestInsert_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	err := s.Insert(&engine.Job{ID: "job-1", Command: "echo hi", MaxRetries: 3}, now)
	require.ErrorIs(t, err, engine.ErrDuplicateID)
}

// TestClaimNext_Uniqueness exercises property 1 from SPEC_FULL.md §8: under
// concurrent claim attempts, exactly one worker wins a given job.
func TestClaimNext_Uniqueness(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	const workers = 8
	var wg sync.WaitGroup
	claims := make(chan *engine.Job, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := s.ClaimNext(now)
			require.NoError(t, err)
			if j != nil {
				claims <- j
			}
		}()
	}
	wg.Wait()
	close(claims)

	var won []*engine.Job
	for j := range claims {
		won = append(won, j)
	}
	require.Len(t, won, 1)
	require.Equal(t, "job-1", won[0].ID)
}

func TestClaimNext_Eligibility(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	future := now.Add(time.Hour)

	j := &engine.Job{ID: "future-job", Command: "echo hi", MaxRetries: 3, RunAt: &future}
	require.NoError(t, s.Insert(j, now))

	got, err := s.ClaimNext(now)
	require.NoError(t, err)
	require.Nil(t, got, "job scheduled in the future must not be claimable yet")

	got, err = s.ClaimNext(future.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "future-job", got.ID)
}

func TestClaimNext_PriorityOrder(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	insertJob(t, s, "low", now, 0)
	insertJob(t, s, "high", now.Add(time.Second), 10)
	insertJob(t, s, "mid", now.Add(2*time.Second), 5)

	first, err := s.ClaimNext(now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "high", first.ID)

	second, err := s.ClaimNext(now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "mid", second.ID)

	third, err := s.ClaimNext(now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "low", third.ID)
}

// TestTerminalStickiness exercises property 2 from SPEC_FULL.md §8: once a
// job reaches completed, no further finalize call can move it.
func TestTerminalStickiness(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	claimed, err := s.ClaimNext(now)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, s.FinalizeSuccess("job-1", now, "out", "", 10))

	err = s.FinalizeFailure("job-1", now, engine.StateFailed, now.Add(time.Second), "boom", "", "", 5)
	require.Error(t, err, "a completed job must reject a second finalize")

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, engine.StateCompleted, got.State)
}

func TestFinalizeFailure_DeadHasNoNextRetry(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	_, err := s.ClaimNext(now)
	require.NoError(t, err)

	require.NoError(t, s.FinalizeFailure("job-1", now, engine.StateDead, time.Time{}, "boom", "", "err", 1))

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, engine.StateDead, got.State)
	require.Nil(t, got.NextRetryAt)
	require.NotNil(t, got.CompletedAt)
}

func TestDLQRetry(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	_, err := s.ClaimNext(now)
	require.NoError(t, err)
	require.NoError(t, s.FinalizeFailure("job-1", now, engine.StateDead, time.Time{}, "boom", "", "", 1))

	err = s.DLQRetry("job-2-does-not-exist", now)
	require.ErrorIs(t, err, engine.ErrNotInDLQ)

	require.NoError(t, s.DLQRetry("job-1", now))
	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, engine.StatePending, got.State)
	require.Equal(t, 0, got.Attempts)
	require.Empty(t, got.ErrorMessage)
}

func TestPromoteDue(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	_, err := s.ClaimNext(now)
	require.NoError(t, err)
	retryAt := now.Add(5 * time.Second)
	require.NoError(t, s.FinalizeFailure("job-1", now, engine.StateFailed, retryAt, "boom", "", "", 1))

	n, err := s.PromoteDue(now)
	require.NoError(t, err)
	require.Equal(t, 0, n, "not due yet")

	n, err = s.PromoteDue(retryAt.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, engine.StatePending, got.State)
	require.Nil(t, got.NextRetryAt)
}

// TestReapStale_Idempotence exercises property 8 from SPEC_FULL.md §8:
// reaping twice in a row is a no-op the second time.
func TestReapStale_Idempotence(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)

	_, err := s.ClaimNext(now)
	require.NoError(t, err)

	threshold := now.Add(time.Minute)
	n, err := s.ReapStale(threshold)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, engine.StatePending, got.State)

	n, err = s.ReapStale(threshold)
	require.NoError(t, err)
	require.Equal(t, 0, n, "second reap over the same window must be a no-op")
}

// TestDurability_RoundTrip exercises property 7 from SPEC_FULL.md §8: closing
// and reopening the store preserves every job's full state.
func TestDurability_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "queuectl.db")
	now := time.Now().UTC()

	s, err := Open(dbPath)
	require.NoError(t, err)
	insertJob(t, s, "job-1", now, 7)
	require.NoError(t, s.SetConfig("max-retries", "9"))
	require.NoError(t, s.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", got.ID)
	require.Equal(t, 7, got.Priority)
	require.Equal(t, engine.StatePending, got.State)

	cfg, err := reopened.GetConfig()
	require.NoError(t, err)
	require.Equal(t, 9, cfg.MaxRetries)
}

func TestConfig_GetSetDefaults(t *testing.T) {
	s := openTestStore(t)

	cfg, err := s.GetConfig()
	require.NoError(t, err)
	require.Equal(t, engine.DefaultConfig(), cfg)

	require.NoError(t, s.SetConfig("backoff-base", "3"))
	cfg, err = s.GetConfig()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.BackoffBase)

	err = s.SetConfig("backoff-base", "not-a-number")
	require.ErrorIs(t, err, engine.ErrInvalidConfigValue)

	err = s.SetConfig("not-a-real-key", "1")
	require.ErrorIs(t, err, engine.ErrUnknownConfigKey)
}

func TestWorkerRegistry(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.RegisterWorker("worker-1", 1234, now))
	require.NoError(t, s.HeartbeatWorker("worker-1", now.Add(time.Second)))

	active, err := s.ActiveWorkerCount(now.Add(2*time.Second), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, active)

	require.NoError(t, s.StopWorker("worker-1", now.Add(3*time.Second)))
	active, err = s.ActiveWorkerCount(now.Add(4*time.Second), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 0, active)

	workers, err := s.ListWorkers()
	require.NoError(t, err)
	require.Len(t, workers, 1)
	require.NotNil(t, workers[0].StoppedAt)
}

func TestCountsByState(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	insertJob(t, s, "job-1", now, 0)
	insertJob(t, s, "job-2", now, 0)

	counts, err := s.CountsByState()
	require.NoError(t, err)
	require.Equal(t, 2, counts[engine.StatePending])
	require.Equal(t, 0, counts[engine.StateCompleted])
}
