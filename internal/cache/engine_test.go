package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnis-alertmanager/internal/alert"
)

func TestTmpMessageCheck(t *testing.T) {
	e := New(nil, nil, nil)

	_, seen := e.CheckTmpMessage("ev1", "DEMO")
	assert.False(t, seen)

	e.AddTmpMessage("ev1", "DEMO", false)
	wasRecover, seen := e.CheckTmpMessage("ev1", "DEMO")
	require.True(t, seen)
	assert.False(t, wasRecover)

	e.AddTmpMessage("ev2", "DEMO", true)
	wasRecover, seen = e.CheckTmpMessage("ev2", "DEMO")
	require.True(t, seen)
	assert.True(t, wasRecover)

	// event_id 只在 project 范围内有意义
	_, seen = e.CheckTmpMessage("ev1", "OTHER")
	assert.False(t, seen)
}

func TestTmpMessageRefreshKeepsSize(t *testing.T) {
	e := New(nil, nil, nil)
	e.AddTmpMessage("ev1", "DEMO", false)
	e.AddTmpMessage("ev1", "DEMO", true)
	assert.Equal(t, 1, e.TmpMessageCount())

	wasRecover, seen := e.CheckTmpMessage("ev1", "DEMO")
	require.True(t, seen)
	assert.True(t, wasRecover)
}

func TestTmpMessageEviction(t *testing.T) {
	e := New(nil, nil, nil)
	for i := 0; i <= MaxTmpMessages; i++ {
		e.AddTmpMessage(fmt.Sprintf("ev%d", i), "DEMO", false)
	}
	assert.Equal(t, MaxTmpMessages, e.TmpMessageCount())

	// 最早写入的 ev0 被剔除，其余保留
	_, seen := e.CheckTmpMessage("ev0", "DEMO")
	assert.False(t, seen)
	_, seen = e.CheckTmpMessage("ev1", "DEMO")
	assert.True(t, seen)
	_, seen = e.CheckTmpMessage(fmt.Sprintf("ev%d", MaxTmpMessages), "DEMO")
	assert.True(t, seen)
}

func TestTmpMessageEvictionRespectsRecency(t *testing.T) {
	e := New(nil, nil, nil)
	for i := 0; i < MaxTmpMessages; i++ {
		e.AddTmpMessage(fmt.Sprintf("ev%d", i), "DEMO", false)
	}
	// 刷新 ev0 后，下一次剔除的应是 ev1
	e.AddTmpMessage("ev0", "DEMO", false)
	e.AddTmpMessage("extra", "DEMO", false)

	assert.Equal(t, MaxTmpMessages, e.TmpMessageCount())
	_, seen := e.CheckTmpMessage("ev0", "DEMO")
	assert.True(t, seen)
	_, seen = e.CheckTmpMessage("ev1", "DEMO")
	assert.False(t, seen)
}

func TestMetadataLookupCaseInsensitive(t *testing.T) {
	items := map[string]*alert.Item{"jvm001": {Code: "jvm001", Level: "2"}}
	rules := map[string]*alert.SendRule{"jvm001": {AlertCode: "jvm001"}}
	e := New(items, rules, nil)

	assert.NotNil(t, e.GetItem("JVM001"))
	assert.NotNil(t, e.GetItem("jvm001"))
	assert.NotNil(t, e.GetSendRule("Jvm001"))
	assert.Nil(t, e.GetItem("NOPE"))
}

func TestSnapshotLifecycle(t *testing.T) {
	e := New(nil, nil, nil)
	snap := &alert.ResendSnapshot{Msg: "m"}
	e.PutSnapshot("rec1", snap)

	list := e.SnapshotList()
	require.Len(t, list, 1)
	assert.Same(t, snap, list["rec1"])

	e.RemoveSnapshot("rec1")
	assert.Empty(t, e.SnapshotList())
}
