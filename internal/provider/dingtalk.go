package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"omnis-alertmanager/internal/alert"
)

// DingTalkProvider 钉钉机器人 webhook，配置了密钥时按官方文档加签。
type DingTalkProvider struct {
	client *http.Client
	policy *Policy
}

func NewDingTalkProvider(client *http.Client, policy *Policy) *DingTalkProvider {
	return &DingTalkProvider{client: client, policy: policy}
}

func (d *DingTalkProvider) ChannelType() alert.ChannelType { return alert.ChannelDingTalk }

func (d *DingTalkProvider) Send(ctx context.Context, event *alert.SendEvent) error {
	if err := d.policy.Apply(event); err != nil {
		return err
	}
	cp := event.Channel.Provider
	if cp == nil || cp.DingRobotURL == "" {
		return fmt.Errorf("%w: 钉钉机器人URL未配置", alert.ErrConfig)
	}

	webhookURL := cp.DingRobotURL
	if cp.DingRobotSign != "" {
		webhookURL = addSign(webhookURL, cp.DingRobotSign)
	}

	payload := map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": event.Msg},
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: dingtalk webhook status=%d", alert.ErrSend, resp.StatusCode)
	}

	// 钉钉即使失败也会返回 200，通过 errcode 判断是否成功
	var res struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err == nil && res.ErrCode != 0 {
		return fmt.Errorf("%w: 钉钉发送失败 errcode=%d errmsg=%s", alert.ErrSend, res.ErrCode, res.ErrMsg)
	}
	return nil
}

// addSign 时间戳 + 密钥做 HMAC-SHA256，追加到 webhook 查询串。
func addSign(webhookURL, secret string) string {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	stringToSign := timestamp + "\n" + secret

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	sign := base64.StdEncoding.EncodeToString(h.Sum(nil))

	u, err := url.Parse(webhookURL)
	if err != nil {
		return webhookURL
	}
	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", sign)
	u.RawQuery = q.Encode()
	return u.String()
}
