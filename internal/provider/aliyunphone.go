package provider

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"omnis-alertmanager/internal/alert"
)

const aliyunDefaultEndpoint = "https://dyvmsapi.aliyuncs.com/"

// AliyunPhoneProvider 阿里云语音通知（SingleCallByTts），签名 GET 请求。
type AliyunPhoneProvider struct {
	client *http.Client
	policy *Policy
}

func NewAliyunPhoneProvider(client *http.Client, policy *Policy) *AliyunPhoneProvider {
	return &AliyunPhoneProvider{client: client, policy: policy}
}

func (a *AliyunPhoneProvider) ChannelType() alert.ChannelType { return alert.ChannelAliyunPhone }

func (a *AliyunPhoneProvider) Send(ctx context.Context, event *alert.SendEvent) error {
	if err := a.policy.Apply(event); err != nil {
		return err
	}
	cp := event.Channel.Provider
	if cp == nil {
		return fmt.Errorf("%w: 阿里云语音通道未配置", alert.ErrConfig)
	}
	if cp.AliyunAccessKeyID == "" || cp.AliyunAccessKeySecret == "" || cp.AliyunTTSCode == "" ||
		len(cp.AliyunCalledNumbers) == 0 || cp.AliyunCalledShow == "" {
		return fmt.Errorf("%w: 阿里云语音通道需要 access key、模板、主叫/被叫号码等配置", alert.ErrConfig)
	}

	endpoint := cp.AliyunAPIURL
	if endpoint == "" {
		endpoint = aliyunDefaultEndpoint
	}
	endpoint = strings.TrimRight(endpoint, "/")
	region := cp.AliyunRegion
	if region == "" {
		region = "cn-hangzhou"
	}
	ttsParam := cp.AliyunTTSParams
	if ttsParam == "" {
		ttsParam = "{}"
	}

	params := map[string]string{
		"Action":           "SingleCallByTts",
		"RegionId":         region,
		"Version":          "2017-05-25",
		"AccessKeyId":      cp.AliyunAccessKeyID,
		"SignatureMethod":  "HMAC-SHA1",
		"Timestamp":        time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		"Format":           "JSON",
		"SignatureNonce":   nonce(),
		"SignatureVersion": "1.0",
		"CalledShowNumber": cp.AliyunCalledShow,
		"CalledNumber":     cp.AliyunCalledNumbers[0],
		"TtsCode":          cp.AliyunTTSCode,
		"TtsParam":         ttsParam,
	}
	params["Signature"] = signParameters(cp.AliyunAccessKeySecret, params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/?"+values.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrSend, err)
	}
	defer resp.Body.Close()

	var res struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("%w: 解析阿里云响应失败: %v", alert.ErrSend, err)
	}
	if res.Code != "OK" {
		return fmt.Errorf("%w: 阿里云语音调用失败: %s", alert.ErrSend, res.Message)
	}
	return nil
}

// percentEncode RFC3986 编码，保留 '~'，空格编码为 %20。
func percentEncode(value string) string {
	encoded := url.QueryEscape(value)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	encoded = strings.ReplaceAll(encoded, "*", "%2A")
	encoded = strings.ReplaceAll(encoded, "%7E", "~")
	return encoded
}

// signParameters 阿里云规范化查询串 HMAC-SHA1 签名。
func signParameters(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	canonicalized := strings.Join(pairs, "&")
	stringToSign := "GET&%2F&" + percentEncode(canonicalized)

	h := hmac.New(sha1.New, []byte(secret+"&"))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func nonce() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%x", buf)
}
