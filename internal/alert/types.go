package alert

import "time"

// SourceType 预警来源类型，取值沿用老系统的编码。
type SourceType string

const (
	SourceZabbix     SourceType = "0"
	SourcePinpoint   SourceType = "1"
	SourceELK        SourceType = "2"
	SourceOmnis      SourceType = "3"
	SourcePrometheus SourceType = "4"
	SourceBusi       SourceType = "8"
	SourceOthers     SourceType = "9"
)

// ChannelType 通知渠道类型
type ChannelType string

const (
	ChannelWeChat      ChannelType = "1"
	ChannelQQ          ChannelType = "2"
	ChannelDingTalk    ChannelType = "3"
	ChannelMail        ChannelType = "4"
	ChannelSMS         ChannelType = "5"
	ChannelAliyunPhone ChannelType = "aliyun_phone"
	ChannelOthers      ChannelType = "9"
)

// Name 返回渠道类型的可读名称，用于日志与 comment 标记。
func (c ChannelType) Name() string {
	switch c {
	case ChannelWeChat:
		return "WEIXIN"
	case ChannelQQ:
		return "QQ"
	case ChannelDingTalk:
		return "DINGDING"
	case ChannelMail:
		return "MAIL"
	case ChannelSMS:
		return "SHORTMSG"
	case ChannelAliyunPhone:
		return "ALIYUN_PHONE"
	default:
		return "OTHERS"
	}
}

// Item 预警编码的静态定义，启动时加载后只读。
type Item struct {
	Code     string
	Desc     string
	Solution string
	Level    string
	Group    string
	Note     string
}

// ChannelProvider 渠道的出站配置（按渠道类型取用对应字段）。
type ChannelProvider struct {
	ProviderID   string
	ProviderName string
	ProviderType string

	// 企业微信
	WxCorpID  string
	WxSecret  string
	WxAgentID string
	WxToUser  string
	WxToParty string
	WxBaseURL string

	// 钉钉机器人
	DingRobotURL  string
	DingRobotSign string

	// 邮件
	MailSender   string
	MailUsername string
	MailPassword string
	MailSMTPHost string
	MailSMTPPort int
	MailTo       []string

	// 短信网关
	MasSenderURL  string
	MasSenderUser string
	MasSenderPwd  string
	MasSign       string
	MasPhones     []string

	// 阿里云语音
	AliyunAccessKeyID     string
	AliyunAccessKeySecret string
	AliyunTTSCode         string
	AliyunTTSParams       string
	AliyunCalledShow      string
	AliyunCalledNumbers   []string
	AliyunRegion          string
	AliyunAPIURL          string
}

// Channel 一条通知渠道，绑定一个 provider 配置。
type Channel struct {
	ChannelID   string
	ChannelName string
	Type        ChannelType
	RuleID      string
	ProviderID  string
	SendRate    int // 每分钟发送上限，<=0 表示不限
	IsInvalid   string
	IsDel       string
	// MapperMonitorGroup 形如 "[TJH]"，"[all]" 表示全部项目组
	MapperMonitorGroup string
	MsgFormat          string
	Provider           *ChannelProvider
}

// SendRule 按预警编码配置的发送规则，运行期只读。
type SendRule struct {
	RuleID      string
	RuleGroupID string
	AlertCode   string
	// RepeatSendInterval 重复提醒间隔（秒），>0 时成功发送后进入重发快照
	RepeatSendInterval int
	// RepeatSendMaxTime 最大重发次数
	RepeatSendMaxTime int
	// SameAlertResendMinTime 同一预警最小重发间隔（秒）
	SameAlertResendMinTime int
	IsForbid               string
	RecoverMsgNotSend      int
	ItemNotShow            int
	MsgFmt                 string
	Channels               []*Channel
}

// ForbidRule 临时禁止发送规则（维护窗口），集合内 "NULL" 表示该维度全匹配。
type ForbidRule struct {
	BegTime    time.Time
	EndTime    time.Time
	ForbidType string
	IPs        map[string]struct{}
	Hosts      map[string]struct{}
	Channels   map[string]struct{}
	AlertCodes map[string]struct{}
	Projects   map[string]struct{}
}

// Record 一次预警事件（产生或恢复），由解析生成、派发过程修改、仓储持久化。
type Record struct {
	RecordID     string
	EventID      string
	AlertCode    string
	Project      string
	ProjectGroup string
	AlertSource  string
	EventType    string
	HostIP       string
	Hostname     string
	AlertLevel   string
	AddTime      time.Time
	AlertMsgOrg  string
	AlertMsg     string
	RecordStatu  string
	Comment      string
	ItemNotShow  int
	AlertTime    *time.Time
	RecoverTime  *time.Time
	IsRecover    string
	IsConfirm    string
	ServerID     string
	EventName    string

	SourceType  SourceType
	MsgJSONInfo map[string]any
	Others      map[string]any

	// CurrentIsSendMsg 为 false 时走完整流程但不调用 provider（主从推送模式）
	CurrentIsSendMsg bool
	// ForbidChannels 命中临时禁止规则后填充，派发时跳过其中的渠道
	ForbidChannels map[string]struct{}
	ForbidRuleType string
	HostBusiName   string
}

// SendEvent provider 发送一次消息所需的全部上下文。
type SendEvent struct {
	Record  *Record
	Msg     string
	Channel *Channel
	Rule    *SendRule
}

// ResendSnapshot 成功发送后的重发快照，由重发调度器消费。
type ResendSnapshot struct {
	Rule         *SendRule
	Channel      *Channel
	Record       *Record
	Msg          string
	SendCount    int
	LastSendTime int64 // 毫秒时间戳
}

// SyncMsg 待同步到下游节点的消息。
type SyncMsg struct {
	Msg             string
	ProjectIdentify string
	MsgType         int
}
