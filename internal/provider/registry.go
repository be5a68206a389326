package provider

import (
	"context"
	"net/http"
	"sync"
	"time"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
)

// Provider 单一发送能力，所有渠道类型实现同一契约。
type Provider interface {
	ChannelType() alert.ChannelType
	Send(ctx context.Context, event *alert.SendEvent) error
}

// Registry 渠道类型到 provider 的映射，未注册的类型回落到日志 provider，
// 保证不认识的渠道配置不会阻断派发。
type Registry struct {
	mu        sync.Mutex
	providers map[alert.ChannelType]Provider
	policy    *Policy
}

func NewRegistry(policy *Policy) *Registry {
	return &Registry{
		providers: make(map[alert.ChannelType]Provider),
		policy:    policy,
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ChannelType()] = p
}

func (r *Registry) Get(channelType alert.ChannelType) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[channelType]; ok {
		return p
	}
	p := &LoggingProvider{channelType: channelType, policy: r.policy}
	r.providers[channelType] = p
	return p
}

// Default 按默认配置构建全部内置 provider。
func Default(timeout time.Duration) *Registry {
	policy := NewPolicy()
	client := &http.Client{Timeout: timeout}
	registry := NewRegistry(policy)
	registry.Register(NewWeChatProvider(client, policy))
	registry.Register(NewDingTalkProvider(client, policy))
	registry.Register(NewEmailProvider(policy))
	registry.Register(NewSMSProvider(client, policy))
	registry.Register(NewAliyunPhoneProvider(client, policy))
	return registry
}

// LoggingProvider 对未映射的渠道类型只打日志，永远返回成功。
type LoggingProvider struct {
	channelType alert.ChannelType
	policy      *Policy
}

func (l *LoggingProvider) ChannelType() alert.ChannelType { return l.channelType }

func (l *LoggingProvider) Send(_ context.Context, event *alert.SendEvent) error {
	if err := l.policy.Apply(event); err != nil {
		return err
	}
	logging.Infof("[%s] send alert %s via %s -> %s",
		l.channelType.Name(), event.Record.AlertCode, event.Channel.ChannelName, event.Msg)
	return nil
}
