package alert

// 与老库保持一致的状态码与标记值。
const (
	ForbidYes = "1"
	ForbidNo  = "0"

	ForbidYesInt = 1

	CanNotUse = "1"

	EventTypeCreate  = "1"
	EventTypeRecover = "0"

	IsRecoverYes = "1"
	IsRecoverNo  = "0"

	ConfirmYes = "1"
	ConfirmNo  = "0"

	MsgTypeZbx  = 1
	MsgTypeJSON = 2

	ItemNotShowYes = 1
	ItemNotShowNo  = 0

	// 临时禁止规则类型：1 仅不发送，2 不发送也不展示（不落库）
	ForbidNotSend        = "1"
	ForbidNotShowAndSend = "2"
)

// Record.RecordStatu 的取值
const (
	StatuSent              = "0"
	StatuRuleForbid        = "1"
	StatuChannelInvalid    = "2"
	StatuGroupMismatch     = "3"
	StatuProviderFailure   = "9"
	StatuRecoverSuppressed = "10"
)

// Record.Comment 的取值
const (
	CommentNotSend           = "NOT_SEND"
	CommentRuleForbid        = "NOT_SEND_RULE_FORBID"
	CommentChannelInvalid    = "NOT_SEND_CHANNEL_INVALID"
	CommentGroupMismatch     = "NOT_SEND_PROVIDE_NO_GROUP"
	CommentRecoverSuppressed = "NOT_SEND_RECOVER_FORBID"
	CommentProviderFailPfx   = "PROVIDER_FAIL_"
)

// JSON 推送的保留字段名与默认预警编码
const (
	JSONKeyAlertCode  = "alertcode"
	JSONKeySourceType = "alertsourcetype"
	JSONKeyHostname   = "hostname"
	JSONKeyHostIP     = "hostip"
	JSONKeyProject    = "project"
	JSONKeyMsg        = "msg"
	JSONKeyOthers     = "others"

	DefaultBusiAlertCode = "BUSI000"

	// ForbidMatchAll 禁止规则集合里的全匹配哨兵值
	ForbidMatchAll = "NULL"

	// LevelUnknown 未在知识库中登记时的预警级别
	LevelUnknown = "-1"
)
