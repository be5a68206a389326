package provider

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"omnis-alertmanager/internal/alert"
)

// EmailProvider SMTP 邮件。25 端口走 STARTTLS，其余端口默认隐式 TLS。
type EmailProvider struct {
	policy *Policy
}

func NewEmailProvider(policy *Policy) *EmailProvider {
	return &EmailProvider{policy: policy}
}

func (e *EmailProvider) ChannelType() alert.ChannelType { return alert.ChannelMail }

func (e *EmailProvider) Send(ctx context.Context, event *alert.SendEvent) error {
	if err := e.policy.Apply(event); err != nil {
		return err
	}
	cp := event.Channel.Provider
	if cp == nil {
		return fmt.Errorf("%w: 邮件通道未配置", alert.ErrConfig)
	}
	if cp.MailSMTPHost == "" || cp.MailSMTPPort == 0 || cp.MailUsername == "" || cp.MailPassword == "" {
		return fmt.Errorf("%w: 邮件通道缺少SMTP配置", alert.ErrConfig)
	}
	if len(cp.MailTo) == 0 {
		return fmt.Errorf("%w: 邮件通道未配置收件人", alert.ErrConfig)
	}

	sender := cp.MailSender
	if sender == "" {
		sender = cp.MailUsername
	}
	record := event.Record

	m := gomail.NewMessage()
	m.SetHeader("From", sender)
	m.SetHeader("To", cp.MailTo...)
	m.SetHeader("Subject", fmt.Sprintf("告警 - %s#%s", record.Hostname, record.HostIP))
	m.SetBody("text/plain", event.Msg)

	d := gomail.NewDialer(cp.MailSMTPHost, cp.MailSMTPPort, cp.MailUsername, cp.MailPassword)
	d.SSL = cp.MailSMTPPort != 25

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: 邮件发送失败: %v", alert.ErrSend, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: 邮件发送超时: %v", alert.ErrSend, ctx.Err())
	}
}
