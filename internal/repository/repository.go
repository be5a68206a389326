package repository

import (
	"time"

	"omnis-alertmanager/internal/alert"
)

// RepeatCandidate 待自动确认的重复预警定位信息。
type RepeatCandidate struct {
	HostIP    string
	AlertCode string
	AddTime   time.Time
	Project   string
}

// RecordRepository 预警记录的持久化契约。
type RecordRepository interface {
	SaveRecord(record *alert.Record) error
	// MarkRecovered 按 event_id 置恢复标记，返回受影响行数。
	// 事件不存在时返回 0，不会凭空生成记录，可安全重复调用。
	MarkRecovered(record *alert.Record) (int64, error)
	GetRecord(recordID string) (*alert.Record, error)
	// QueryRepeatCandidates 返回每组 (hostip, 编码, project) 中
	// 除最新一条外的全部未恢复、未确认的产生记录。
	QueryRepeatCandidates() ([]RepeatCandidate, error)
	ConfirmRepeat(hostIP, alertCode string, addTime time.Time, project string) error
}

// MetadataRepository 启动时加载元数据的契约。
type MetadataRepository interface {
	LoadMetadata() (map[string]*alert.Item, map[string]*alert.SendRule, []*alert.ForbidRule, error)
}
