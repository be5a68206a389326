package cache

import "omnis-alertmanager/internal/alert"

// FromSeed 返回内置种子数据构建的缓存，数据库不可用时保证引擎可以启动。
func FromSeed() *Engine {
	provider := &alert.ChannelProvider{
		ProviderID:   "provider-mail",
		ProviderName: "Default Mail Provider",
		ProviderType: "MAIL",
		MailUsername: "noreply@example.com",
		MailPassword: "password",
		MailSMTPHost: "smtp.example.com",
		MailSMTPPort: 465,
		MailSender:   "noreply@example.com",
		MailTo:       []string{"ops@example.com"},
	}
	channel := &alert.Channel{
		ChannelID:   "channel-mail",
		ChannelName: "Mail Notification",
		Type:        alert.ChannelMail,
		RuleID:      "rule-busi",
		ProviderID:  provider.ProviderID,
		Provider:    provider,
		MsgFormat:   "[Omnis][{ALERT_CODE}] {HOST_NAME}({HOST_IP}) {STATU}: {ALERT_MSG}",
		SendRate:    30,
	}
	rule := &alert.SendRule{
		RuleID:                 "rule-busi",
		RuleGroupID:            "group-busi",
		AlertCode:              alert.DefaultBusiAlertCode,
		RepeatSendInterval:     300,
		RepeatSendMaxTime:      3,
		SameAlertResendMinTime: 60,
		MsgFmt:                 channel.MsgFormat,
		Channels:               []*alert.Channel{channel},
	}
	item := &alert.Item{
		Code:     alert.DefaultBusiAlertCode,
		Desc:     "Default business notification",
		Solution: "Inspect the upstream system.",
		Level:    "1",
		Group:    "default",
	}
	return New(
		map[string]*alert.Item{item.Code: item},
		map[string]*alert.SendRule{rule.AlertCode: rule},
		nil,
	)
}
