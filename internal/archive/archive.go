package archive

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	osv2 "github.com/opensearch-project/opensearch-go/v2"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/config"
)

// Client 可选的记录归档，把落库的预警记录同步写入 Elasticsearch / OpenSearch 索引。
type Client struct {
	provider string
	index    string
	es       *es.Client
	os       *osv2.Client
}

func NewClient(cfg config.ArchiveConfig) (*Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify,
		},
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.Provider == "opensearch" {
		osClient, err := osv2.NewClient(osv2.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: transport,
		})
		if err != nil {
			return nil, err
		}
		return &Client{provider: cfg.Provider, index: cfg.Index, os: osClient}, nil
	}

	esClient, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, err
	}
	return &Client{provider: cfg.Provider, index: cfg.Index, es: esClient}, nil
}

// IndexRecord 以记录 ID 为文档 ID 写入归档索引。
func (c *Client) IndexRecord(record *alert.Record) error {
	doc := map[string]any{
		"@timestamp":     record.AddTime.Format(time.RFC3339),
		"event_id":       record.EventID,
		"alertitem_code": record.AlertCode,
		"project":        record.Project,
		"hostname":       record.Hostname,
		"hostip":         record.HostIP,
		"alert_level":    record.AlertLevel,
		"event_type":     record.EventType,
		"alert_source":   record.AlertSource,
		"record_statu":   record.RecordStatu,
		"comments":       record.Comment,
		"alert_msg":      record.AlertMsg,
		"is_recover":     record.IsRecover,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}

	switch c.provider {
	case "opensearch":
		res, err := c.os.Index(c.index, &buf,
			c.os.Index.WithDocumentID(record.RecordID),
		)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("archive index error: %s", res.String())
		}
	default:
		res, err := c.es.Index(c.index, &buf,
			c.es.Index.WithDocumentID(record.RecordID),
		)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("archive index error: %s", res.String())
		}
	}
	return nil
}
