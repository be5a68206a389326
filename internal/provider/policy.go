package provider

import (
	"fmt"
	"sync"
	"time"

	"omnis-alertmanager/internal/alert"
)

// Policy 所有渠道发送前的公共限制：每分钟限速 + 最小重发间隔。
// 按渠道 ID / (主机,IP,编码,渠道) 维度各自计数，跨 provider 共享一个实例。
type Policy struct {
	mu        sync.Mutex
	perMinute map[string][]time.Time
	lastSend  map[string]time.Time

	// now 可注入，便于测试时间窗行为
	now func() time.Time
}

func NewPolicy() *Policy {
	return &Policy{
		perMinute: make(map[string][]time.Time),
		lastSend:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Apply 在每次发送前调用，不通过时返回 ErrRateLimited / ErrResendTooSoon。
func (p *Policy) Apply(event *alert.SendEvent) error {
	if err := p.throttle(event.Channel.ChannelID, event.Channel.SendRate); err != nil {
		return err
	}
	return p.resendGuard(event.Record, event.Channel, event.Rule)
}

// throttle 滑动 60 秒窗口限速，maxPerMinute<=0 表示不限。
func (p *Policy) throttle(channelID string, maxPerMinute int) error {
	if maxPerMinute <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	cutoff := now.Add(-time.Minute)
	window := p.perMinute[channelID]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= maxPerMinute {
		p.perMinute[channelID] = kept
		return fmt.Errorf("%w: channel %s exceeded %d msgs/min", alert.ErrRateLimited, channelID, maxPerMinute)
	}
	p.perMinute[channelID] = append(kept, now)
	return nil
}

// resendGuard 仅对产生类事件生效，规则未配置最小间隔时直接放行。
func (p *Policy) resendGuard(record *alert.Record, channel *alert.Channel, rule *alert.SendRule) error {
	if record.EventType != alert.EventTypeCreate || rule == nil || rule.SameAlertResendMinTime <= 0 {
		return nil
	}
	key := record.Hostname + "@" + record.HostIP + "@" + record.AlertCode + "@" + channel.ChannelID
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if last, ok := p.lastSend[key]; ok {
		if now.Sub(last) <= time.Duration(rule.SameAlertResendMinTime)*time.Second {
			return fmt.Errorf("%w: %s resend interval < %ds", alert.ErrResendTooSoon, record.AlertCode, rule.SameAlertResendMinTime)
		}
	}
	p.lastSend[key] = now
	return nil
}
