package service

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/cache"
	"omnis-alertmanager/internal/logging"
	"omnis-alertmanager/internal/msgformat"
	"omnis-alertmanager/internal/provider"
	"omnis-alertmanager/internal/repository"

	"github.com/robfig/cron/v3"
)

// Response 推送接口统一的响应信封。
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func builderSuccess(msg string) Response {
	return Response{Status: "success", Message: msg}
}

func builderError(msg string) Response {
	return Response{Status: "error", Message: msg}
}

// Archiver 可选的记录归档能力。
type Archiver interface {
	IndexRecord(record *alert.Record) error
}

// Options 引擎的全部初始化参数，不依赖任何全局状态。
type Options struct {
	Project      string
	Cache        *cache.Engine
	Repo         repository.RecordRepository
	Providers    *provider.Registry
	Archiver     Archiver
	SlaveTargets []string

	SendTimeout           time.Duration
	SlaveTimeout          time.Duration
	ResendInterval        time.Duration
	RepeatConfirmInterval time.Duration
	SyncInterval          time.Duration
}

// Service 预警接入、规则评估与派发引擎。
type Service struct {
	project      string
	cache        *cache.Engine
	repo         repository.RecordRepository
	providers    *provider.Registry
	archiver     Archiver
	slaveTargets []string
	slaveClient  *http.Client

	sendTimeout           time.Duration
	resendInterval        time.Duration
	repeatConfirmInterval time.Duration
	syncInterval          time.Duration

	syncMu    sync.Mutex
	syncQueue []alert.SyncMsg

	cron *cron.Cron
}

func New(opts Options) *Service {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.SlaveTimeout <= 0 {
		opts.SlaveTimeout = 5 * time.Second
	}
	if opts.ResendInterval <= 0 {
		opts.ResendInterval = 30 * time.Second
	}
	if opts.RepeatConfirmInterval <= 0 {
		opts.RepeatConfirmInterval = 10 * time.Second
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = time.Second
	}
	return &Service{
		project:               strings.ToUpper(opts.Project),
		cache:                 opts.Cache,
		repo:                  opts.Repo,
		providers:             opts.Providers,
		archiver:              opts.Archiver,
		slaveTargets:          opts.SlaveTargets,
		slaveClient:           &http.Client{Timeout: opts.SlaveTimeout},
		sendTimeout:           opts.SendTimeout,
		resendInterval:        opts.ResendInterval,
		repeatConfirmInterval: opts.RepeatConfirmInterval,
		syncInterval:          opts.SyncInterval,
	}
}

// PushJSON 处理 JSON 形态的推送。sendMsg 为 false 时走完整流程但不出站发送。
func (s *Service) PushJSON(jsonMsg string, sourceType alert.SourceType, sendMsg bool) Response {
	record, err := s.recordFromJSON(jsonMsg, sourceType)
	if err != nil {
		logging.Warnf("push json rejected: %v", err)
		return builderError(err.Error())
	}
	record.CurrentIsSendMsg = sendMsg
	return s.pushNative(record)
}

// PushZabbix 处理 Zabbix 管道分隔文本的推送。
func (s *Service) PushZabbix(payload string, sendMsg bool) Response {
	record, err := s.recordFromZabbix(payload)
	if err != nil {
		logging.Warnf("push zabbix rejected: %v", err)
		return builderError(err.Error())
	}
	record.CurrentIsSendMsg = sendMsg
	return s.pushNative(record)
}

// pushNative 规则评估 → 渠道派发 → 去重落库，任何内部错误都转成统一信封。
func (s *Service) pushNative(record *alert.Record) Response {
	rule := s.cache.GetSendRule(record.AlertCode)

	switch {
	case rule == nil || len(rule.Channels) == 0:
		logging.Infof("alert %s has no channels configured, skipping", record.AlertCode)
		record.RecordStatu = alert.StatuChannelInvalid
		record.Comment = alert.CommentNotSend
	case rule.IsForbid == alert.ForbidYes:
		logging.Infof("%s rule is disabled, skipping", record.AlertCode)
		record.RecordStatu = alert.StatuRuleForbid
		record.Comment = alert.CommentRuleForbid
	case record.EventType == alert.EventTypeRecover && rule.RecoverMsgNotSend == alert.ForbidYesInt:
		logging.Infof("%s recover notifications suppressed by rule", record.AlertCode)
		record.RecordStatu = alert.StatuRecoverSuppressed
		record.Comment = alert.CommentRecoverSuppressed
	default:
		record.RecordStatu = alert.StatuSent
		record.Comment = alert.CommentNotSend
		s.dispatchChannels(record, rule)
	}

	if record.ForbidRuleType == alert.ForbidNotShowAndSend {
		record.ItemNotShow = alert.ItemNotShowYes
	} else if rule != nil {
		record.ItemNotShow = rule.ItemNotShow
	}

	s.persist(record)
	return builderSuccess("OK")
}

// dispatchChannels 逐个渠道尝试发送，单个渠道失败不影响其余渠道；
// 只要有一个渠道发送成功，整体结果就是已发送。
func (s *Service) dispatchChannels(record *alert.Record, rule *alert.SendRule) {
	anySuccess := false
	for _, channel := range rule.Channels {
		if s.channelSkipped(record, channel) {
			continue
		}
		template := channel.MsgFormat
		if template == "" {
			template = rule.MsgFmt
		}
		msg := msgformat.Format(record, template)

		if !record.CurrentIsSendMsg {
			logging.Infof("master push mode, suppressing channel send for %s", record.EventID)
			continue
		}

		event := &alert.SendEvent{Record: record, Msg: msg, Channel: channel, Rule: rule}
		p := s.providers.Get(channel.Type)
		ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		err := p.Send(ctx, event)
		cancel()
		if err != nil {
			logging.Warnf("provider %s failed for alert %s: %v", channel.Type.Name(), record.AlertCode, err)
			record.RecordStatu = alert.StatuProviderFailure
			record.Comment = alert.CommentProviderFailPfx + channel.Type.Name()
			continue
		}

		anySuccess = true

		// 发送成功且规则要求重复提醒时登记重发快照
		if record.EventType == alert.EventTypeCreate && rule.RepeatSendInterval > 0 {
			s.cache.PutSnapshot(record.RecordID, &alert.ResendSnapshot{
				Rule:         rule,
				Channel:      channel,
				Record:       record,
				Msg:          msg,
				LastSendTime: time.Now().UnixMilli(),
			})
		}
	}
	if anySuccess {
		record.RecordStatu = alert.StatuSent
		record.Comment = alert.CommentNotSend
	}
}

// channelSkipped 渠道级跳过判定，命中时在记录上标注原因。
func (s *Service) channelSkipped(record *alert.Record, channel *alert.Channel) bool {
	if record.ForbidChannels != nil {
		if _, ok := record.ForbidChannels[channel.ChannelID]; ok {
			logging.Infof("channel %s blocked by temporary forbid rule for alert %s", channel.ChannelID, record.AlertCode)
			record.RecordStatu = alert.StatuRuleForbid
			record.Comment = alert.CommentRuleForbid
			return true
		}
	}
	if channel.IsInvalid == alert.CanNotUse || channel.IsDel == alert.CanNotUse {
		record.RecordStatu = alert.StatuChannelInvalid
		record.Comment = alert.CommentChannelInvalid
		return true
	}
	group := channel.MapperMonitorGroup
	if group != "" && !strings.EqualFold(group, "[all]") {
		normalized := strings.NewReplacer("[", "", "]", "").Replace(group)
		if normalized != "" && !strings.Contains(record.ProjectGroup, normalized) {
			record.RecordStatu = alert.StatuGroupMismatch
			record.Comment = alert.CommentGroupMismatch
			return true
		}
	}
	return false
}

// persist 恢复事件无条件打恢复标记，产生事件按去重缓存做至多一次落库。
func (s *Service) persist(record *alert.Record) {
	if record.EventType == alert.EventTypeRecover {
		affected, err := s.repo.MarkRecovered(record)
		s.cache.AddTmpMessage(record.EventID, record.Project, true)
		if err != nil {
			logging.Errorf("mark recovered %s failed: %v", record.EventID, err)
			return
		}
		if affected == 0 {
			logging.Warnf("recover message for %s arrived before create event, stored only in cache", record.EventID)
		}
		return
	}

	wasRecover, seen := s.cache.CheckTmpMessage(record.EventID, record.Project)
	if seen {
		if wasRecover {
			logging.Warnf("duplicate recover for %s detected, skipping persistence", record.EventID)
		} else {
			logging.Warnf("duplicate create event %s detected, skipping persistence", record.EventID)
		}
		return
	}
	if record.ForbidRuleType != alert.ForbidNotShowAndSend {
		if err := s.repo.SaveRecord(record); err != nil {
			logging.Errorf("save record %s failed: %v", record.EventID, err)
		} else if s.archiver != nil {
			if err := s.archiver.IndexRecord(record); err != nil {
				logging.Warnf("archive record %s failed: %v", record.RecordID, err)
			}
		}
	}
	s.cache.AddTmpMessage(record.EventID, record.Project, false)
}

// checkForbidRules 按加载顺序匹配禁止规则，第一条命中即生效。
func (s *Service) checkForbidRules(record *alert.Record) {
	now := time.Now()
	for _, fr := range s.cache.ForbidRules() {
		if fr.BegTime.IsZero() || fr.EndTime.IsZero() {
			continue
		}
		if fr.BegTime.After(now) || fr.EndTime.Before(now) {
			continue
		}
		if !matchForbid(fr.IPs, record.HostIP) {
			continue
		}
		if !matchForbid(fr.AlertCodes, record.AlertCode) {
			continue
		}
		if !matchForbid(fr.Projects, record.Project) {
			continue
		}
		if len(fr.Hosts) > 0 && !matchHost(fr.Hosts, record.Hostname) {
			continue
		}
		record.ForbidRuleType = fr.ForbidType
		record.ForbidChannels = make(map[string]struct{}, len(fr.Channels))
		for ch := range fr.Channels {
			record.ForbidChannels[ch] = struct{}{}
		}
		return
	}
}

// matchForbid 空集合不匹配，{"NULL"} 全匹配，否则做精确成员判断。
func matchForbid(values map[string]struct{}, candidate string) bool {
	if len(values) == 0 {
		return false
	}
	if len(values) == 1 {
		if _, ok := values[alert.ForbidMatchAll]; ok {
			return true
		}
	}
	_, ok := values[candidate]
	return ok
}

// matchHost 主机名按大小写不敏感子串匹配。
func matchHost(hosts map[string]struct{}, hostname string) bool {
	lower := strings.ToLower(hostname)
	for h := range hosts {
		if strings.Contains(lower, strings.ToLower(h)) {
			return true
		}
	}
	return false
}
