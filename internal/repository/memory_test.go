package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnis-alertmanager/internal/alert"
)

func newRecord(recordID, eventID, hostIP, code, project string, addTime time.Time) *alert.Record {
	return &alert.Record{
		RecordID:  recordID,
		EventID:   eventID,
		AlertCode: code,
		Project:   project,
		HostIP:    hostIP,
		EventType: alert.EventTypeCreate,
		IsRecover: alert.IsRecoverNo,
		IsConfirm: alert.ConfirmNo,
		AddTime:   addTime,
	}
}

func TestMarkRecoveredIdempotent(t *testing.T) {
	repo := NewMemory()
	now := time.Now()
	require.NoError(t, repo.SaveRecord(newRecord("r1", "ev1", "10.0.0.1", "JVM001", "DEMO", now)))

	recover := &alert.Record{EventID: "ev1", EventType: alert.EventTypeRecover, RecoverTime: &now}
	affected, err := repo.MarkRecovered(recover)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	stored, err := repo.GetRecord("r1")
	require.NoError(t, err)
	assert.Equal(t, alert.IsRecoverYes, stored.IsRecover)
}

func TestMarkRecoveredUnknownEvent(t *testing.T) {
	repo := NewMemory()
	recover := &alert.Record{EventID: "missing", EventType: alert.EventTypeRecover}

	// 未知事件不会生成记录，重复调用同样安全
	affected, err := repo.MarkRecovered(recover)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	affected, err = repo.MarkRecovered(recover)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestQueryRepeatCandidatesKeepsNewest(t *testing.T) {
	repo := NewMemory()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRecord(newRecord("r1", "ev1", "10.0.0.1", "JVM001", "DEMO", base)))
	require.NoError(t, repo.SaveRecord(newRecord("r2", "ev2", "10.0.0.1", "JVM001", "DEMO", base.Add(time.Minute))))
	require.NoError(t, repo.SaveRecord(newRecord("r3", "ev3", "10.0.0.1", "JVM001", "DEMO", base.Add(2*time.Minute))))

	candidates, err := repo.QueryRepeatCandidates()
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	for _, c := range candidates {
		require.NoError(t, repo.ConfirmRepeat(c.HostIP, c.AlertCode, c.AddTime, c.Project))
	}

	r1, _ := repo.GetRecord("r1")
	r2, _ := repo.GetRecord("r2")
	r3, _ := repo.GetRecord("r3")
	assert.Equal(t, alert.ConfirmYes, r1.IsConfirm)
	assert.Equal(t, alert.ConfirmYes, r2.IsConfirm)
	assert.Equal(t, alert.ConfirmNo, r3.IsConfirm)

	// 只剩最新一条未确认，不再产生候选
	candidates, err = repo.QueryRepeatCandidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestGetRecordReturnsCopy(t *testing.T) {
	repo := NewMemory()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRecord(newRecord("r1", "ev1", "10.0.0.1", "JVM001", "DEMO", base)))

	got, err := repo.GetRecord("r1")
	require.NoError(t, err)
	got.IsConfirm = alert.ConfirmYes

	// 修改副本不影响仓储内的记录
	again, err := repo.GetRecord("r1")
	require.NoError(t, err)
	assert.Equal(t, alert.ConfirmNo, again.IsConfirm)

	missing, err := repo.GetRecord("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetRecordConcurrentWithConfirm(t *testing.T) {
	repo := NewMemory()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRecord(newRecord("r1", "ev1", "10.0.0.1", "JVM001", "DEMO", base)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			record, err := repo.GetRecord("r1")
			if err == nil && record != nil {
				_ = record.IsConfirm
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = repo.ConfirmRepeat("10.0.0.1", "JVM001", base, "DEMO")
		}
	}()
	wg.Wait()

	stored, err := repo.GetRecord("r1")
	require.NoError(t, err)
	assert.Equal(t, alert.ConfirmYes, stored.IsConfirm)
}

func TestQueryRepeatCandidatesSeparatesGroups(t *testing.T) {
	repo := NewMemory()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRecord(newRecord("r1", "ev1", "10.0.0.1", "JVM001", "DEMO", base)))
	require.NoError(t, repo.SaveRecord(newRecord("r2", "ev2", "10.0.0.2", "JVM001", "DEMO", base.Add(time.Minute))))

	candidates, err := repo.QueryRepeatCandidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestQueryRepeatCandidatesIgnoresRecovered(t *testing.T) {
	repo := NewMemory()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r1 := newRecord("r1", "ev1", "10.0.0.1", "JVM001", "DEMO", base)
	r1.IsRecover = alert.IsRecoverYes
	require.NoError(t, repo.SaveRecord(r1))
	require.NoError(t, repo.SaveRecord(newRecord("r2", "ev2", "10.0.0.1", "JVM001", "DEMO", base.Add(time.Minute))))

	candidates, err := repo.QueryRepeatCandidates()
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
