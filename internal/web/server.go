package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/logging"
	"omnis-alertmanager/internal/service"
)

// Server 预警推送的 HTTP 入口。
type Server struct {
	listen  string
	project string
	svc     *service.Service
}

func NewServer(listen, project string, svc *service.Service) *Server {
	return &Server{listen: listen, project: project, svc: svc}
}

// Router 组装路由，测试可直接拿 handler 使用。
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/alertmanager/push/zbx", s.handlePushZbx).Methods(http.MethodPost)
	r.HandleFunc("/alertmanager/push/json", s.handlePushJSON).Methods(http.MethodPost)
	r.HandleFunc("/alertmanager/pushaltermsgpms", s.handlePushPrometheus).Methods(http.MethodPost)
	return r
}

// Start 在配置的监听地址上启动 HTTP 服务（阻塞调用）。
// 建议在单独的 goroutine 中启动。
func (s *Server) Start() error {
	logging.Infof("web server listening on %s", s.listen)
	return http.ListenAndServe(s.listen, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handlePushZbx Zabbix 纯文本推送。notsendmsg=1 只落库不发送，syncdata=1 不再向下游同步。
func (s *Server) handlePushZbx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, service.Response{Status: "error", Message: err.Error()})
		return
	}
	query := r.URL.Query()
	sendMsg := query.Get("notsendmsg") != "1"

	resp := s.svc.PushZabbix(string(body), sendMsg)
	if query.Get("syncdata") != "1" {
		project := query.Get("projectIdentify")
		if project == "" {
			project = s.project
		}
		s.svc.EnqueueSync(string(body), project, alert.MsgTypeZbx)
	}
	writeJSON(w, resp)
}

// handlePushJSON 通用 JSON 推送，默认按业务来源处理。
func (s *Server) handlePushJSON(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, service.Response{Status: "error", Message: err.Error()})
		return
	}
	query := r.URL.Query()
	sourceType := alert.SourceBusi
	if v := query.Get("alertsourcetype"); v != "" {
		sourceType = alert.SourceType(v)
	}
	sendMsg := query.Get("sendmsg") != "false"
	writeJSON(w, s.svc.PushJSON(string(body), sourceType, sendMsg))
}

// handlePushPrometheus 与 push/json 同构，来源标记为 Prometheus，并参与下游同步。
func (s *Server) handlePushPrometheus(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, service.Response{Status: "error", Message: err.Error()})
		return
	}
	query := r.URL.Query()
	sendMsg := query.Get("notsendmsg") != "1"

	resp := s.svc.PushJSON(string(body), alert.SourcePrometheus, sendMsg)
	if query.Get("syncdata") != "1" {
		project := query.Get("projectIdentify")
		if project == "" {
			var payload map[string]any
			if json.Unmarshal(body, &payload) == nil {
				if p, ok := payload["project"].(string); ok {
					project = p
				}
			}
		}
		if project == "" {
			project = s.project
		}
		s.svc.EnqueueSync(string(body), project, alert.MsgTypeJSON)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, resp service.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Errorf("write response failed: %v", err)
	}
}
