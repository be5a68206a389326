package msgformat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"omnis-alertmanager/internal/alert"
)

func sampleRecord() *alert.Record {
	alertTime := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	return &alert.Record{
		EventID:    "20240301103000000001",
		AlertCode:  "JVM001",
		Project:    "DEMO",
		Hostname:   "app-server-01",
		HostIP:     "10.0.0.1",
		AlertLevel: "3",
		EventType:  alert.EventTypeCreate,
		AlertMsg:   "heap usage over 90%",
		AlertTime:  &alertTime,
	}
}

func TestFormatPlaceholders(t *testing.T) {
	record := sampleRecord()
	got := Format(record, "[{ALERT_CODE}] {HOST_NAME}({HOST_IP}) {STATU}: {ALERT_MSG}")
	assert.Equal(t, "[JVM001] app-server-01(10.0.0.1) PROBLEM: heap usage over 90%", got)
}

func TestFormatStatus(t *testing.T) {
	record := sampleRecord()

	record.EventType = alert.EventTypeRecover
	assert.Equal(t, "RECOVER", Format(record, "{STATU}"))

	record.EventType = "7"
	assert.Equal(t, "UNKNOWN", Format(record, "{STATU}"))
}

func TestFormatEmptyTemplateFallsBackToMessage(t *testing.T) {
	record := sampleRecord()
	assert.Equal(t, "heap usage over 90%", Format(record, ""))

	record.AlertMsg = ""
	record.AlertMsgOrg = "raw payload"
	assert.Equal(t, "raw payload", Format(record, ""))
}

func TestFormatMissingValuesRenderEmpty(t *testing.T) {
	record := sampleRecord()
	got := Format(record, "r=[{RECOVER_TIME}] loc=[{LOCATION}] ns=[{NAMESPACE}]")
	assert.Equal(t, "r=[] loc=[] ns=[]", got)
}

func TestFormatOthersPlaceholders(t *testing.T) {
	record := sampleRecord()
	record.Others = map[string]any{"env": "prod", "owner": "team-a"}
	got := Format(record, "{OTHERS.ENV}/{OTHERS.OWNER}/{OTHERS.MISSING}")
	assert.Equal(t, "prod/team-a/{OTHERS.MISSING}", got)
}

func TestFormatTitle(t *testing.T) {
	record := sampleRecord()
	record.Others = map[string]any{"subject": "explicit subject"}
	assert.Equal(t, "explicit subject", Format(record, "{TITLE}"))

	record.Others = nil
	record.AlertMsg = "first line\nsecond line"
	assert.Equal(t, "first line", Format(record, "{TITLE}"))

	record.AlertMsg = strings.Repeat("x", 200)
	assert.Equal(t, strings.Repeat("x", 120), Format(record, "{TITLE}"))

	record.AlertMsg = ""
	assert.Equal(t, "JVM001", Format(record, "{TITLE}"))
}

func TestFormatJSONPayload(t *testing.T) {
	record := sampleRecord()
	record.MsgJSONInfo = map[string]any{"message": "disk full"}
	got := Format(record, "{JSON_MESSGES}")
	assert.Contains(t, got, `"message":"disk full"`)
}

func TestFormatHostBusiNameFallback(t *testing.T) {
	record := sampleRecord()
	assert.Equal(t, "app-server-01", Format(record, "{HOST_BUSI_NAME}"))

	record.HostBusiName = "订单服务"
	assert.Equal(t, "订单服务", Format(record, "{HOST_BUSI_NAME}"))
}
