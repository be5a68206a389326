package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
)

// MySQL 仓储，对应老库的表结构。
type MySQL struct {
	db *sql.DB
}

func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &MySQL{db: db}, nil
}

func (m *MySQL) Close() error { return m.db.Close() }

// ---- 元数据加载 ----

func (m *MySQL) LoadMetadata() (map[string]*alert.Item, map[string]*alert.SendRule, []*alert.ForbidRule, error) {
	items, err := m.loadItems()
	if err != nil {
		return nil, nil, nil, err
	}
	providers, err := m.loadProviders()
	if err != nil {
		return nil, nil, nil, err
	}
	channels, err := m.loadChannels(providers)
	if err != nil {
		return nil, nil, nil, err
	}
	rules, err := m.loadRules(channels)
	if err != nil {
		return nil, nil, nil, err
	}
	forbids, err := m.loadForbidRules()
	if err != nil {
		return nil, nil, nil, err
	}
	logging.Infof("loaded %d alert items / %d rules from mysql", len(items), len(rules))
	return items, rules, forbids, nil
}

func (m *MySQL) loadItems() (map[string]*alert.Item, error) {
	rows, err := m.db.Query(`SELECT alertitem_code, IFNULL(alertitem_desc,''), IFNULL(alertitem_solution,''),
		IFNULL(alertitem_level,'-1'), IFNULL(alertitem_group,''), IFNULL(note,'')
		FROM monitor_alertitem_solution`)
	if err != nil {
		return nil, fmt.Errorf("load alert items: %w", err)
	}
	defer rows.Close()

	items := make(map[string]*alert.Item)
	for rows.Next() {
		item := &alert.Item{}
		if err := rows.Scan(&item.Code, &item.Desc, &item.Solution, &item.Level, &item.Group, &item.Note); err != nil {
			return nil, err
		}
		item.Code = strings.ToUpper(item.Code)
		items[item.Code] = item
	}
	return items, rows.Err()
}

func (m *MySQL) loadProviders() (map[string]*alert.ChannelProvider, error) {
	rows, err := m.db.Query(`SELECT msg_send_provider_id, IFNULL(provider_name,''), IFNULL(provider_type,''),
		IFNULL(wx_corpid,''), IFNULL(wx_secret,''), IFNULL(wx_agentId,''), IFNULL(wx_touser,''),
		IFNULL(wx_toparty,''), IFNULL(wx_base_url,''),
		IFNULL(ding_robot_url,''), IFNULL(ding_robot_sign,''),
		IFNULL(mail_sender,''), IFNULL(mail_username,''), IFNULL(mail_pwd,''),
		IFNULL(mail_sender_smtp,''), IFNULL(mail_sender_smtp_port,0), IFNULL(mail_recive_address,''),
		IFNULL(mas_sender_url,''), IFNULL(mas_sender_user,''), IFNULL(mas_sender_pwd,''),
		IFNULL(mas_sign,''), IFNULL(mas_recive_pthones,''),
		IFNULL(aliyun_access_key_id,''), IFNULL(aliyun_access_key_secret,''),
		IFNULL(aliyun_voice_template_code,''), IFNULL(aliyun_voice_template_params,''),
		IFNULL(aliyun_voice_called_show_number,''), IFNULL(aliyun_voice_called_numbers,''),
		IFNULL(aliyun_region,''), IFNULL(aliyun_api_url,'')
		FROM msg_sendchannel_provider`)
	if err != nil {
		return nil, fmt.Errorf("load channel providers: %w", err)
	}
	defer rows.Close()

	providers := make(map[string]*alert.ChannelProvider)
	for rows.Next() {
		cp := &alert.ChannelProvider{}
		var mailTo, masPhones, aliyunNumbers string
		if err := rows.Scan(&cp.ProviderID, &cp.ProviderName, &cp.ProviderType,
			&cp.WxCorpID, &cp.WxSecret, &cp.WxAgentID, &cp.WxToUser, &cp.WxToParty, &cp.WxBaseURL,
			&cp.DingRobotURL, &cp.DingRobotSign,
			&cp.MailSender, &cp.MailUsername, &cp.MailPassword,
			&cp.MailSMTPHost, &cp.MailSMTPPort, &mailTo,
			&cp.MasSenderURL, &cp.MasSenderUser, &cp.MasSenderPwd, &cp.MasSign, &masPhones,
			&cp.AliyunAccessKeyID, &cp.AliyunAccessKeySecret,
			&cp.AliyunTTSCode, &cp.AliyunTTSParams, &cp.AliyunCalledShow, &aliyunNumbers,
			&cp.AliyunRegion, &cp.AliyunAPIURL); err != nil {
			return nil, err
		}
		cp.MailTo = splitCSV(mailTo)
		cp.MasPhones = splitCSV(masPhones)
		cp.AliyunCalledNumbers = splitCSV(aliyunNumbers)
		providers[cp.ProviderID] = cp
	}
	return providers, rows.Err()
}

func (m *MySQL) loadChannels(providers map[string]*alert.ChannelProvider) (map[string][]*alert.Channel, error) {
	rows, err := m.db.Query(`SELECT b.channel_id, IFNULL(b.channel_name,''), b.channel_type,
		a.msg_send_rule_id, b.msg_send_provider_id, IFNULL(b.send_rate,0),
		IFNULL(b.is_invalid,'0'), IFNULL(b.is_del,'0'),
		IFNULL(b.mapper_monitor_group,''), IFNULL(b.msg_format,'')
		FROM msg_send_rel_channel a, monitor_msg_channel b, msg_send_rule c, msg_send_rule_group d
		WHERE a.channel_id = b.channel_id AND c.msg_send_rule_id = a.msg_send_rule_id
		AND c.send_rule_group_id = d.send_rule_group_id
		AND b.is_del = '0' AND b.is_invalid = '0' AND d.is_default_group = '1'`)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]*alert.Channel)
	for rows.Next() {
		ch := &alert.Channel{}
		var channelType string
		if err := rows.Scan(&ch.ChannelID, &ch.ChannelName, &channelType,
			&ch.RuleID, &ch.ProviderID, &ch.SendRate,
			&ch.IsInvalid, &ch.IsDel, &ch.MapperMonitorGroup, &ch.MsgFormat); err != nil {
			return nil, err
		}
		ch.Type = alert.ChannelType(channelType)
		ch.Provider = providers[ch.ProviderID]
		grouped[ch.RuleID] = append(grouped[ch.RuleID], ch)
	}
	return grouped, rows.Err()
}

func (m *MySQL) loadRules(channels map[string][]*alert.Channel) (map[string]*alert.SendRule, error) {
	rows, err := m.db.Query(`SELECT a.msg_send_rule_id, IFNULL(a.send_rule_group_id,''), a.alertitem_code,
		IFNULL(a.repeat_send_interval,0), IFNULL(a.repeat_send_interval_maxtime,0),
		IFNULL(a.same_alert_resend_mintime,0), IFNULL(a.is_forbid,'0'),
		IFNULL(a.recover_msg_notsend,0), IFNULL(a.alertitem_notshow,0), IFNULL(a.msg_fmt,'')
		FROM msg_send_rule a, msg_send_rule_group b, monitor_alertitem_solution c
		WHERE a.send_rule_group_id = b.send_rule_group_id
		AND c.alertitem_code = a.alertitem_code AND b.is_default_group = '1'`)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[string]*alert.SendRule)
	for rows.Next() {
		rule := &alert.SendRule{}
		if err := rows.Scan(&rule.RuleID, &rule.RuleGroupID, &rule.AlertCode,
			&rule.RepeatSendInterval, &rule.RepeatSendMaxTime,
			&rule.SameAlertResendMinTime, &rule.IsForbid,
			&rule.RecoverMsgNotSend, &rule.ItemNotShow, &rule.MsgFmt); err != nil {
			return nil, err
		}
		rule.AlertCode = strings.ToUpper(rule.AlertCode)
		rule.Channels = channels[rule.RuleID]
		rules[rule.AlertCode] = rule
	}
	return rules, rows.Err()
}

func (m *MySQL) loadForbidRules() ([]*alert.ForbidRule, error) {
	rows, err := m.db.Query(`SELECT time_begin, time_end, IFNULL(forbid_type,'1'),
		IFNULL(ip_str,''), IFNULL(machine_name_str,''), IFNULL(channel_id_str,''),
		IFNULL(alertitem_code_str,''), IFNULL(project_code_str,'')
		FROM msg_send_forbid WHERE ? BETWEEN time_begin AND time_end`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("load forbid rules: %w", err)
	}
	defer rows.Close()

	var forbids []*alert.ForbidRule
	for rows.Next() {
		fr := &alert.ForbidRule{}
		var ips, hosts, channels, codes, projects string
		if err := rows.Scan(&fr.BegTime, &fr.EndTime, &fr.ForbidType,
			&ips, &hosts, &channels, &codes, &projects); err != nil {
			return nil, err
		}
		fr.IPs = csvSet(ips)
		fr.Hosts = csvSet(hosts)
		fr.Channels = csvSet(channels)
		fr.AlertCodes = csvSet(codes)
		fr.Projects = csvSet(projects)
		forbids = append(forbids, fr)
	}
	return forbids, rows.Err()
}

// ---- 记录持久化 ----

func (m *MySQL) SaveRecord(record *alert.Record) error {
	_, err := m.db.Exec(`INSERT INTO monitor_alertitem_record
		(alertitem_record_id, event_id, alert_time, recover_time, hostname, hostip, alertitem_code,
		event_type, event_name, add_time, alert_source, is_confirm, comments, record_statu, alert_msg,
		alert_msg_org, alert_level, alertitem_notshow, server_id, is_recover, project)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RecordID, record.EventID, record.AlertTime, record.RecoverTime,
		record.Hostname, record.HostIP, record.AlertCode,
		record.EventType, record.EventName, record.AlertSource,
		nonEmpty(record.IsConfirm, alert.ConfirmNo), record.Comment, record.RecordStatu,
		record.AlertMsg, record.AlertMsgOrg, record.AlertLevel,
		record.ItemNotShow, record.ServerID, record.IsRecover, record.Project)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (m *MySQL) MarkRecovered(record *alert.Record) (int64, error) {
	res, err := m.db.Exec(`UPDATE monitor_alertitem_record
		SET event_type = ?, recover_time = ?, is_recover = '1' WHERE event_id = ?`,
		record.EventType, record.RecoverTime, record.EventID)
	if err != nil {
		return 0, fmt.Errorf("mark recovered: %w", err)
	}
	return res.RowsAffected()
}

func (m *MySQL) GetRecord(recordID string) (*alert.Record, error) {
	row := m.db.QueryRow(`SELECT alertitem_record_id, event_id, alertitem_code, project,
		IFNULL(alert_source,''), event_type, IFNULL(hostip,''), IFNULL(hostname,''),
		IFNULL(alert_level,'-1'), add_time, IFNULL(alert_msg_org,''), IFNULL(alert_msg,''),
		IFNULL(comments,''), IFNULL(record_statu,'0'), IFNULL(alertitem_notshow,0),
		alert_time, recover_time, IFNULL(is_recover,'0'), IFNULL(is_confirm,'0')
		FROM monitor_alertitem_record WHERE alertitem_record_id = ?`, recordID)

	record := &alert.Record{}
	var alertTime, recoverTime sql.NullTime
	err := row.Scan(&record.RecordID, &record.EventID, &record.AlertCode, &record.Project,
		&record.AlertSource, &record.EventType, &record.HostIP, &record.Hostname,
		&record.AlertLevel, &record.AddTime, &record.AlertMsgOrg, &record.AlertMsg,
		&record.Comment, &record.RecordStatu, &record.ItemNotShow,
		&alertTime, &recoverTime, &record.IsRecover, &record.IsConfirm)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if alertTime.Valid {
		record.AlertTime = &alertTime.Time
	}
	if recoverTime.Valid {
		record.RecoverTime = &recoverTime.Time
	}
	return record, nil
}

func (m *MySQL) QueryRepeatCandidates() ([]RepeatCandidate, error) {
	// 每组 (hostip, 编码, project) 保留 add_time 最大的一条，其余待确认
	rows, err := m.db.Query(`SELECT r.hostip, r.alertitem_code, r.add_time, r.project
		FROM monitor_alertitem_record r
		JOIN (SELECT hostip, alertitem_code, project, MAX(add_time) AS max_add
			FROM monitor_alertitem_record
			WHERE event_type = '1' AND (is_recover IS NULL OR is_recover = '0') AND is_confirm = '0'
			GROUP BY hostip, alertitem_code, project) g
		ON r.hostip = g.hostip AND r.alertitem_code = g.alertitem_code AND r.project = g.project
		WHERE r.event_type = '1' AND (r.is_recover IS NULL OR r.is_recover = '0')
		AND r.is_confirm = '0' AND r.add_time < g.max_add`)
	if err != nil {
		return nil, fmt.Errorf("query repeat candidates: %w", err)
	}
	defer rows.Close()

	var out []RepeatCandidate
	for rows.Next() {
		var c RepeatCandidate
		if err := rows.Scan(&c.HostIP, &c.AlertCode, &c.AddTime, &c.Project); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (m *MySQL) ConfirmRepeat(hostIP, alertCode string, addTime time.Time, project string) error {
	_, err := m.db.Exec(`UPDATE monitor_alertitem_record SET is_confirm = ?
		WHERE hostip = ? AND alertitem_code = ? AND add_time = ? AND project = ?`,
		alert.ConfirmYes, hostIP, alertCode, addTime, project)
	if err != nil {
		return fmt.Errorf("confirm repeat: %w", err)
	}
	return nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func csvSet(value string) map[string]struct{} {
	parts := splitCSV(value)
	if len(parts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		set[part] = struct{}{}
	}
	return set
}

func nonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
