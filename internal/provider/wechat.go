package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
)

// token 过期前预留的安全余量（秒）
const wxTokenExpireMargin = 300

type wxToken struct {
	token    string
	expireAt time.Time
}

// WeChatProvider 企业微信应用消息。access_token 按 corpid:secret 缓存，
// 发送遇到 token 过期响应码时强制刷新并重试一次。
type WeChatProvider struct {
	client *http.Client
	policy *Policy

	mu     sync.Mutex
	tokens map[string]wxToken
}

func NewWeChatProvider(client *http.Client, policy *Policy) *WeChatProvider {
	return &WeChatProvider{
		client: client,
		policy: policy,
		tokens: make(map[string]wxToken),
	}
}

func (w *WeChatProvider) ChannelType() alert.ChannelType { return alert.ChannelWeChat }

func (w *WeChatProvider) Send(ctx context.Context, event *alert.SendEvent) error {
	if err := w.policy.Apply(event); err != nil {
		return err
	}
	cp := event.Channel.Provider
	if cp == nil {
		return fmt.Errorf("%w: 微信通道缺少配置", alert.ErrConfig)
	}
	if cp.WxCorpID == "" || cp.WxSecret == "" || cp.WxBaseURL == "" {
		return fmt.Errorf("%w: 微信通道缺少 corpid/secret/base_url", alert.ErrConfig)
	}

	baseURL := strings.TrimRight(cp.WxBaseURL, "/")
	token, err := w.getToken(ctx, cp.WxCorpID, cp.WxSecret, baseURL, false)
	if err != nil {
		return err
	}

	toUser := cp.WxToUser
	if toUser == "" {
		toUser = "@all"
	}
	payload := map[string]any{
		"touser":  toUser,
		"toparty": cp.WxToParty,
		"msgtype": "text",
		"agentid": cp.WxAgentID,
		"text":    map[string]string{"content": event.Msg},
		"safe":    "0",
	}

	code, errmsg, err := w.post(ctx, baseURL, token, payload)
	if err != nil {
		return err
	}
	// 40014/42001 表示 token 失效，刷新后只重试一次
	if code == 40014 || code == 42001 {
		logging.Infof("wechat token expired, refreshing")
		token, err = w.getToken(ctx, cp.WxCorpID, cp.WxSecret, baseURL, true)
		if err != nil {
			return err
		}
		code, errmsg, err = w.post(ctx, baseURL, token, payload)
		if err != nil {
			return err
		}
	}
	if code != 0 {
		return fmt.Errorf("%w: 微信消息发送失败: %s", alert.ErrSend, errmsg)
	}
	return nil
}

func (w *WeChatProvider) post(ctx context.Context, baseURL, token string, payload map[string]any) (int, string, error) {
	body, _ := json.Marshal(payload)
	sendURL := fmt.Sprintf("%s/message/send?access_token=%s", baseURL, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	defer resp.Body.Close()
	var res struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, "", fmt.Errorf("%w: 解析微信响应失败: %v", alert.ErrSend, err)
	}
	return res.ErrCode, res.ErrMsg, nil
}

// getToken 临界区只包住刷新，命中缓存的读取不阻塞发送。
func (w *WeChatProvider) getToken(ctx context.Context, corpID, secret, baseURL string, force bool) (string, error) {
	cacheKey := corpID + ":" + secret
	if !force {
		w.mu.Lock()
		entry, ok := w.tokens[cacheKey]
		w.mu.Unlock()
		if ok && time.Now().Before(entry.expireAt) {
			return entry.token, nil
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !force {
		if entry, ok := w.tokens[cacheKey]; ok && time.Now().Before(entry.expireAt) {
			return entry.token, nil
		}
	}

	tokenURL := fmt.Sprintf("%s/gettoken?corpid=%s&corpsecret=%s",
		baseURL, url.QueryEscape(corpID), url.QueryEscape(secret))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	defer resp.Body.Close()
	var res struct {
		ErrCode     int    `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("%w: 解析微信token响应失败: %v", alert.ErrSend, err)
	}
	if res.ErrCode != 0 {
		return "", fmt.Errorf("%w: 获取微信token失败: %s", alert.ErrSend, res.ErrMsg)
	}
	expires := res.ExpiresIn
	if expires <= 0 {
		expires = 7200
	}
	w.tokens[cacheKey] = wxToken{
		token:    res.AccessToken,
		expireAt: time.Now().Add(time.Duration(expires-wxTokenExpireMargin) * time.Second),
	}
	return res.AccessToken, nil
}
