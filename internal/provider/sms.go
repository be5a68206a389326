package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
)

// SMSProvider 短信网关，MAS 风格的 HTTP POST。
type SMSProvider struct {
	client *http.Client
	policy *Policy
}

func NewSMSProvider(client *http.Client, policy *Policy) *SMSProvider {
	return &SMSProvider{client: client, policy: policy}
}

func (s *SMSProvider) ChannelType() alert.ChannelType { return alert.ChannelSMS }

func (s *SMSProvider) Send(ctx context.Context, event *alert.SendEvent) error {
	if err := s.policy.Apply(event); err != nil {
		return err
	}
	cp := event.Channel.Provider
	if cp == nil || cp.MasSenderURL == "" {
		return fmt.Errorf("%w: 短信通道未配置URL", alert.ErrConfig)
	}
	if len(cp.MasPhones) == 0 {
		return fmt.Errorf("%w: 短信通道未配置接收号码", alert.ErrConfig)
	}

	body := map[string]any{
		"username": cp.MasSenderUser,
		"password": cp.MasSenderPwd,
		"sign":     cp.MasSign,
		"message":  event.Msg,
		"phones":   cp.MasPhones,
	}
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cp.MasSenderURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: 短信发送失败 HTTP %d", alert.ErrSend, resp.StatusCode)
	}

	var res struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		logging.Warnf("无法解析短信服务返回内容: %s", raw)
		return nil
	}
	if res.Success != nil && !*res.Success {
		return fmt.Errorf("%w: 短信发送失败: %s", alert.ErrSend, res.Message)
	}
	return nil
}
