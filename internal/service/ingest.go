package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"omnis-alertmanager/internal/alert"
)

// recordFromJSON 解析通用 JSON 形态的推送（业务/Prometheus/APM 等来源）。
func (s *Service) recordFromJSON(jsonMsg string, sourceType alert.SourceType) (*alert.Record, error) {
	if jsonMsg == "" {
		return nil, fmt.Errorf("%w: 消息内容不能为空", alert.ErrMalformedMessage)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(jsonMsg), &payload); err != nil {
		return nil, fmt.Errorf("%w: 消息必须是JSON: %v", alert.ErrMalformedMessage, err)
	}

	alertCode := strings.ToUpper(stringField(payload, alert.JSONKeyAlertCode, alert.DefaultBusiAlertCode))
	srcTypeStr := stringField(payload, alert.JSONKeySourceType, string(sourceType))
	if srcTypeStr == "" {
		return nil, fmt.Errorf("%w: Json字符串必须描述 %s 属性", alert.ErrMalformedMessage, alert.JSONKeySourceType)
	}
	srcType := alert.SourceType(srcTypeStr)

	var msgMap map[string]any
	switch msgObj := payload[alert.JSONKeyMsg].(type) {
	case string:
		if srcType == alert.SourcePinpoint {
			msgMap = parsePinpoint(msgObj)
		} else {
			msgMap = map[string]any{"message": msgObj}
		}
	case map[string]any:
		msgMap = msgObj
	default:
		msgMap = map[string]any{"message": msgObj}
	}

	item := s.cache.GetItem(alertCode)
	if item == nil {
		return nil, fmt.Errorf("%w: %s 编码未在知识库找到，请传入正确的消息编码", alert.ErrUnknownAlertCode, alertCode)
	}

	project := strings.ToUpper(stringField(payload, alert.JSONKeyProject, s.project))
	hostname := stringField(payload, alert.JSONKeyHostname, fmt.Sprintf("[%s]-0.0.0.0-[unknown]", project))

	var others map[string]any
	if o, ok := payload[alert.JSONKeyOthers].(map[string]any); ok {
		others = o
	}

	now := time.Now()
	record := &alert.Record{
		RecordID:         uuid.NewString(),
		EventID:          alert.GenerateEventID(now),
		AlertCode:        alertCode,
		Project:          project,
		ProjectGroup:     "[" + project + "]",
		AlertSource:      string(srcType),
		EventType:        alert.EventTypeCreate,
		HostIP:           stringField(payload, alert.JSONKeyHostIP, "0.0.0.0"),
		Hostname:         hostname,
		AlertLevel:       item.Level,
		AddTime:          now,
		AlertMsgOrg:      jsonMsg,
		AlertMsg:         stringify(msgMap["message"]),
		SourceType:       srcType,
		MsgJSONInfo:      msgMap,
		Others:           others,
		IsRecover:        alert.IsRecoverNo,
		IsConfirm:        alert.ConfirmNo,
		CurrentIsSendMsg: true,
	}
	s.checkForbidRules(record)
	return record, nil
}

// recordFromZabbix 解析 Zabbix 管道分隔格式：
// 事件ID|主机名|IP|..|预警时间|恢复时间|事件类型|[项目组]xxx|[编码]消息
func (s *Service) recordFromZabbix(msg string) (*alert.Record, error) {
	if msg == "" {
		return nil, fmt.Errorf("%w: 消息为空", alert.ErrMalformedMessage)
	}
	disableMsg := strings.HasPrefix(msg, "NOTE:") && strings.Contains(msg, "disabled.")
	parts := strings.Split(msg, "|")
	if len(parts) < 9 {
		return nil, fmt.Errorf("%w: 错误的消息格式", alert.ErrMalformedMessage)
	}

	eventID := strings.TrimSpace(parts[0])
	if disableMsg {
		eventID = strings.TrimSpace(eventID[strings.Index(eventID, "disabled.")+len("disabled."):])
	}

	hostname := parts[1]
	hostIP := parts[2]
	alertTime, err := alert.ParseDotTime(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: 错误的预警时间格式 %q", alert.ErrMalformedMessage, parts[4])
	}
	recoverTime, err := alert.ParseDotTime(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: 错误的恢复时间格式 %q", alert.ErrMalformedMessage, parts[5])
	}
	eventType := parts[6]
	projectGroup := parts[7]

	if !strings.HasPrefix(projectGroup, "[") || !strings.Contains(projectGroup, "]") {
		return nil, fmt.Errorf("%w: 错误格式的项目分组名称，需要描述为[TJH]xxxxxx类似%s", alert.ErrMalformedMessage, msg)
	}
	project := projectGroup[1:strings.Index(projectGroup, "]")]

	alertMsg := parts[8]
	if !strings.HasPrefix(alertMsg, "[") || !strings.Contains(alertMsg, "]") {
		return nil, fmt.Errorf("%w: 错误的消息格式，需要描述为[JVM001]类似 预警编码开始", alert.ErrMalformedMessage)
	}
	alertCode := strings.ToUpper(alertMsg[1:strings.Index(alertMsg, "]")])

	level := alert.LevelUnknown
	if item := s.cache.GetItem(alertCode); item != nil {
		level = item.Level
	}

	isRecover := alert.IsRecoverNo
	if recoverTime != nil || disableMsg {
		isRecover = alert.IsRecoverYes
	}

	record := &alert.Record{
		RecordID:         uuid.NewString(),
		EventID:          eventID,
		AlertCode:        alertCode,
		Project:          strings.ToUpper(project),
		ProjectGroup:     projectGroup,
		AlertSource:      string(alert.SourceZabbix),
		EventType:        eventType,
		HostIP:           hostIP,
		Hostname:         hostname,
		AlertLevel:       level,
		AddTime:          time.Now(),
		AlertMsgOrg:      msg,
		AlertMsg:         alertMsg,
		AlertTime:        alertTime,
		RecoverTime:      recoverTime,
		IsRecover:        isRecover,
		IsConfirm:        alert.ConfirmNo,
		SourceType:       alert.SourceZabbix,
		CurrentIsSendMsg: true,
	}
	s.checkForbidRules(record)
	return record, nil
}

// parsePinpoint APM 固定 6 段管道分隔串，按位置取字段。
func parsePinpoint(msg string) map[string]any {
	fields := []string{"appid", "checkername", "notes", "time", "threshold", "message"}
	segments := strings.Split(msg, "|")
	out := make(map[string]any, len(fields))
	for i, field := range fields {
		if i < len(segments) {
			out[field] = segments[i]
		} else {
			out[field] = ""
		}
	}
	return out
}

func stringField(payload map[string]any, key, def string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}
	s := stringify(v)
	if s == "" {
		return def
	}
	return s
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
