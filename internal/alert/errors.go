package alert

import "errors"

// 发送链路上可区分的错误类别，使用 errors.Is 判断。
var (
	// ErrMalformedMessage 消息格式错误，在任何状态变更之前拒绝
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownAlertCode 预警编码未在知识库登记
	ErrUnknownAlertCode = errors.New("unknown alert code")
	// ErrConfig 渠道 provider 缺少必要配置
	ErrConfig = errors.New("channel config error")
	// ErrRateLimited 渠道超过每分钟发送上限
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrResendTooSoon 同一预警距上次发送未超过最小重发间隔
	ErrResendTooSoon = errors.New("resend too soon")
	// ErrSend provider 或传输层发送失败
	ErrSend = errors.New("send failed")
)
