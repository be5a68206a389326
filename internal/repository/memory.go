package repository

import (
	"sort"
	"sync"
	"time"

	"omnis-alertmanager/internal/alert"
)

// Memory 内存仓储，数据库未配置时使用，也供测试使用。
type Memory struct {
	mu      sync.Mutex
	records map[string]*alert.Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]*alert.Record)}
}

func (m *Memory) SaveRecord(record *alert.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.RecordID] = record
	return nil
}

func (m *Memory) MarkRecovered(record *alert.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, stored := range m.records {
		if stored.EventID == record.EventID {
			stored.IsRecover = alert.IsRecoverYes
			stored.RecoverTime = record.RecoverTime
			stored.EventType = alert.EventTypeRecover
			affected++
		}
	}
	return affected, nil
}

// GetRecord 返回记录的副本，调用方在锁外读取不会与后台确认任务竞争。
func (m *Memory) GetRecord(recordID string) (*alert.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[recordID]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

func (m *Memory) QueryRepeatCandidates() ([]RepeatCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type groupKey struct {
		hostIP    string
		alertCode string
		project   string
	}
	grouped := make(map[groupKey][]*alert.Record)
	for _, r := range m.records {
		if r.EventType != alert.EventTypeCreate || r.IsRecover == alert.IsRecoverYes || r.IsConfirm == alert.ConfirmYes {
			continue
		}
		key := groupKey{hostIP: r.HostIP, alertCode: r.AlertCode, project: r.Project}
		grouped[key] = append(grouped[key], r)
	}

	var out []RepeatCandidate
	for key, records := range grouped {
		if len(records) <= 1 {
			continue
		}
		sort.Slice(records, func(i, j int) bool { return records[i].AddTime.Before(records[j].AddTime) })
		// 每组保留最新一条，其余进入待确认集合
		for _, r := range records[:len(records)-1] {
			out = append(out, RepeatCandidate{
				HostIP:    key.hostIP,
				AlertCode: key.alertCode,
				AddTime:   r.AddTime,
				Project:   key.project,
			})
		}
	}
	return out, nil
}

func (m *Memory) ConfirmRepeat(hostIP, alertCode string, addTime time.Time, project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.HostIP == hostIP && r.AlertCode == alertCode && r.Project == project && r.AddTime.Equal(addTime) {
			r.IsConfirm = alert.ConfirmYes
		}
	}
	return nil
}
