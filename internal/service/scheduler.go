package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
)

// Start 启动三个后台循环：重发、重复预警自动确认、下游同步。
func (s *Service) Start() error {
	s.cron = cron.New()
	jobs := []struct {
		name     string
		interval time.Duration
		tick     func()
	}{
		{"resend", s.resendInterval, s.resendTick},
		{"repeat-confirm", s.repeatConfirmInterval, s.repeatConfirmTick},
		{"slave-sync", s.syncInterval, s.syncTick},
	}
	for _, job := range jobs {
		job := job
		_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", job.interval), func() {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Errorf("panic in %s tick: %v", job.name, rec)
				}
			}()
			job.tick()
		})
		if err != nil {
			return fmt.Errorf("add %s job: %w", job.name, err)
		}
		logging.Infof("scheduler registered: %s every %s", job.name, job.interval)
	}
	s.cron.Start()
	return nil
}

// Stop 停止调度并等待进行中的 tick 结束。
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// resendTick 消费重发快照：达到最大次数或记录已确认则丢弃，
// 间隔未到则跳过，否则按原渠道重发并累加计数。
func (s *Service) resendTick() {
	for recordID, snap := range s.cache.SnapshotList() {
		if snap.Rule == nil || snap.SendCount >= snap.Rule.RepeatSendMaxTime {
			s.cache.RemoveSnapshot(recordID)
			continue
		}
		nowMs := time.Now().UnixMilli()
		if nowMs-snap.LastSendTime < int64(snap.Rule.RepeatSendInterval)*1000 {
			continue
		}
		stored, err := s.repo.GetRecord(recordID)
		if err != nil {
			logging.Errorf("resend lookup %s failed: %v", recordID, err)
			continue
		}
		if stored == nil || stored.IsConfirm == alert.ConfirmYes {
			s.cache.RemoveSnapshot(recordID)
			continue
		}
		snap.SendCount++
		snap.LastSendTime = nowMs
		event := &alert.SendEvent{Record: snap.Record, Msg: snap.Msg, Channel: snap.Channel, Rule: snap.Rule}
		ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		if err := s.providers.Get(snap.Channel.Type).Send(ctx, event); err != nil {
			logging.Warnf("resend via %s failed for %s: %v", snap.Channel.Type.Name(), snap.Record.AlertCode, err)
		}
		cancel()
	}
}

// repeatConfirmTick 每组重复预警只保留最新一条未确认。
func (s *Service) repeatConfirmTick() {
	candidates, err := s.repo.QueryRepeatCandidates()
	if err != nil {
		logging.Errorf("query repeat candidates failed: %v", err)
		return
	}
	for _, c := range candidates {
		if err := s.repo.ConfirmRepeat(c.HostIP, c.AlertCode, c.AddTime, c.Project); err != nil {
			logging.Errorf("confirm repeat %s/%s failed: %v", c.HostIP, c.AlertCode, err)
		}
	}
}

// EnqueueSync 登记一条待同步到下游节点的消息。
func (s *Service) EnqueueSync(msg, projectIdentify string, msgType int) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	s.syncQueue = append(s.syncQueue, alert.SyncMsg{Msg: msg, ProjectIdentify: projectIdentify, MsgType: msgType})
}

// syncTick 每次取出一条消息推给全部下游目标，不重试不确认。
func (s *Service) syncTick() {
	s.syncMu.Lock()
	if len(s.syncQueue) == 0 {
		s.syncMu.Unlock()
		return
	}
	syncMsg := s.syncQueue[0]
	s.syncQueue = s.syncQueue[1:]
	s.syncMu.Unlock()

	for _, target := range s.slaveTargets {
		if err := s.syncToTarget(target, syncMsg); err != nil {
			logging.Warnf("sync to %s failed (project=%s, type=%d): %v",
				target, syncMsg.ProjectIdentify, syncMsg.MsgType, err)
		}
	}
}

// syncToTarget 把原始载荷转发到下游节点自己的推送接口，syncdata=1 防止回环。
func (s *Service) syncToTarget(target string, syncMsg alert.SyncMsg) error {
	var path, contentType string
	switch syncMsg.MsgType {
	case alert.MsgTypeZbx:
		path = "/alertmanager/push/zbx"
		contentType = "text/plain"
	default:
		path = "/alertmanager/push/json"
		contentType = "application/json"
	}
	url := fmt.Sprintf("%s%s?projectIdentify=%s&syncdata=1", target, path, syncMsg.ProjectIdentify)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(syncMsg.Msg)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := s.slaveClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}
	return nil
}
