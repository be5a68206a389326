package msgformat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"omnis-alertmanager/internal/alert"
)

// Format 对模板做占位符替换，无副作用，可并发调用。
// 缺失的值渲染为空串，不输出 null 之类的标记。
func Format(record *alert.Record, template string) string {
	if template == "" {
		if record.AlertMsg != "" {
			return record.AlertMsg
		}
		return record.AlertMsgOrg
	}

	alertMsg := record.AlertMsg
	if alertMsg == "" {
		alertMsg = record.AlertMsgOrg
	}
	hostBusiName := record.HostBusiName
	if hostBusiName == "" {
		hostBusiName = record.Hostname
	}

	replacements := map[string]string{
		"{HOST_BUSI_NAME}":    hostBusiName,
		"{HOST_NAME}":         record.Hostname,
		"{HOST_IP}":           record.HostIP,
		"{ALERT_CODE}":        record.AlertCode,
		"{ALERT_TIME}":        alert.FormatDotTime(record.AlertTime),
		"{RECOVER_TIME}":      alert.FormatDotTime(record.RecoverTime),
		"{ALERT_MSG}":         alertMsg,
		"{NOW}":               time.Now().Format(alert.DotTimeLayout),
		"{ALERT_LEVEL}":       record.AlertLevel,
		"{LOCATION}":          othersValue(record, "location"),
		"{EVENT_ID}":          record.EventID,
		"{STATU}":             status(record.EventType),
		"{TITLE}":             title(record),
		"{PROJECT}":           record.Project,
		"{JSON_MESSGES}":      jsonPayload(record),
		"{K8S_RESOURCE_NAME}": msgInfoValue(record, "k8s_resource_name"),
		"{K8S_RESOURCE_TYPE}": msgInfoValue(record, "k8s_resource_type"),
		"{NAMESPACE}":         msgInfoValue(record, "namespace"),
		"{HOSPITAL_NAME}":     msgInfoValue(record, "hospital_name"),
		"{DESCRIPTION}":       msgInfoValue(record, "description"),
	}

	formatted := template
	for placeholder, value := range replacements {
		formatted = strings.ReplaceAll(formatted, placeholder, value)
	}

	// 动态占位符 {OTHERS.<KEY>}，键名取大写
	for key, val := range record.Others {
		placeholder := "{OTHERS." + strings.ToUpper(key) + "}"
		formatted = strings.ReplaceAll(formatted, placeholder, stringify(val))
	}
	return formatted
}

func status(eventType string) string {
	switch eventType {
	case alert.EventTypeRecover:
		return "RECOVER"
	case alert.EventTypeCreate:
		return "PROBLEM"
	default:
		return "UNKNOWN"
	}
}

// title 优先取 others.subject，否则取消息首行并截断到 120 字符。
func title(record *alert.Record) string {
	if subject := othersValue(record, "subject"); subject != "" {
		return subject
	}
	if record.AlertMsg != "" {
		line := record.AlertMsg
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if len(line) > 120 {
			line = line[:120]
		}
		return line
	}
	return record.AlertCode
}

func jsonPayload(record *alert.Record) string {
	if len(record.MsgJSONInfo) == 0 {
		return ""
	}
	data, err := json.Marshal(record.MsgJSONInfo)
	if err != nil {
		return fmt.Sprintf("%v", record.MsgJSONInfo)
	}
	return string(data)
}

func othersValue(record *alert.Record, key string) string {
	if record.Others == nil {
		return ""
	}
	return stringify(record.Others[key])
}

func msgInfoValue(record *alert.Record, key string) string {
	if record.MsgJSONInfo == nil {
		return ""
	}
	return stringify(record.MsgJSONInfo[key])
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
