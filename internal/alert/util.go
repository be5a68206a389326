package alert

import (
	"fmt"
	"time"
)

// DotTimeLayout Zabbix 推送里使用的时间格式
const DotTimeLayout = "2006.01.02 15:04:05"

// ParseDotTime 解析 "2006.01.02 15:04:05" 格式的时间，空串返回 nil。
func ParseDotTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DotTimeLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatDotTime nil 输出空串。
func FormatDotTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DotTimeLayout)
}

// GenerateEventID 生成基于时间戳的事件 ID（秒级时间 + 微秒）。
func GenerateEventID(now time.Time) string {
	return now.Format("20060102150405") + fmt.Sprintf("%06d", now.Nanosecond()/1000)
}

// DedupKey 去重缓存键，event_id 只在 project 范围内有意义。
func DedupKey(eventID, project string) string {
	return eventID + "#" + project
}
