package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycleCreateThenComplete(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateRunning("u1", "analyze_security", `{"symbol":"AAPL"}`)
	require.NoError(t, err)

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)

	require.NoError(t, s.CompleteRun(id, RunSuccess, 42, `{"ok":true}`, ""))
	run, err = s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, RunSuccess, run.Status)
	assert.Equal(t, int64(42), run.ExecutionMS)

	assert.Error(t, s.CompleteRun(id, RunError, 5, "", "late"), "a run already terminal must reject a second completion")
}

func TestSweepOrphansMarksOldRunningRows(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateRunning("u1", "scan_trades", `{}`)
	require.NoError(t, err)

	n, err := s.SweepOrphans(-1 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	run, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, RunError, run.Status)
	assert.Equal(t, "orphaned", run.ErrorMessage)
}

func TestIncrementQuotaMonotonicPerUTCDay(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		count, err := s.IncrementQuota("u1", "analyze_security", now)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err := s.IncrementQuota("u2", "analyze_security", now)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a different user must not share the counter")

	nextDay := now.Add(24 * time.Hour)
	count, err = s.IncrementQuota("u1", "analyze_security", nextDay)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the counter must reset on a new UTC day")
}

func TestPresetDefaultIsSingularPerUserAndTool(t *testing.T) {
	s := newTestStore(t)
	p1, err := s.CreatePreset("u1", "Swing setup", "scan_trades", `{}`, true)
	require.NoError(t, err)
	p2, err := s.CreatePreset("u1", "Day setup", "scan_trades", `{}`, true)
	require.NoError(t, err)

	p1, err = s.GetPreset("u1", p1.ID)
	require.NoError(t, err)
	assert.False(t, p1.IsDefault, "creating a second default must clear the first")

	p2, err = s.GetPreset("u1", p2.ID)
	require.NoError(t, err)
	assert.True(t, p2.IsDefault)
}

func TestDeletePresetIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.DeletePreset("u1", "does-not-exist"))
}

func TestDeletePresetRequiresOwnership(t *testing.T) {
	s := newTestStore(t)
	p, err := s.CreatePreset("u1", "Mine", "analyze_security", `{}`, false)
	require.NoError(t, err)

	require.NoError(t, s.DeletePreset("u2", p.ID))
	_, err = s.GetPreset("u1", p.ID)
	assert.Error(t, err, "a delete by a non-owner must not remove the row")
}

func TestShareTokenRedeemsToOriginalPreset(t *testing.T) {
	s := newTestStore(t)
	p, err := s.CreatePreset("u1", "Shared setup", "screen_securities", `{"min_score":70}`, false)
	require.NoError(t, err)

	token, err := s.CreateShareToken("u1", p.ID)
	require.NoError(t, err)

	redeemed, err := s.RedeemShareToken(token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, redeemed.ID)

	_, err = s.RedeemShareToken("not-a-real-token")
	assert.Error(t, err)
}

func TestPublicLatestRunUpsertIsLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPublicLatestRun("analyze_security", "AAPL", `{"v":1}`))
	require.NoError(t, s.UpsertPublicLatestRun("analyze_security", "AAPL", `{"v":2}`))

	row, err := s.GetPublicLatestRun("analyze_security", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, row.Result)
}

func TestLatestPublicRunsCapsAtLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 12; i++ {
		require.NoError(t, s.UpsertPublicLatestRun("scan_trades", string(rune('a'+i)), `{}`))
	}
	rows, err := s.LatestPublicRuns(9)
	require.NoError(t, err)
	assert.Len(t, rows, 9)
}
