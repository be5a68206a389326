package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnis-alertmanager/internal/alert"
	"omnis-alertmanager/internal/cache"
	"omnis-alertmanager/internal/provider"
	"omnis-alertmanager/internal/repository"
	"omnis-alertmanager/internal/service"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	items := map[string]*alert.Item{
		"BUSI000": {Code: "BUSI000", Level: "1"},
	}
	metaCache := cache.New(items, nil, nil)
	svc := service.New(service.Options{
		Project:   "DEFAULT",
		Cache:     metaCache,
		Repo:      repository.NewMemory(),
		Providers: provider.NewRegistry(provider.NewPolicy()),
	})
	return NewServer(":0", "DEFAULT", svc).Router()
}

func do(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPushJSONSuccessEnvelope(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/alertmanager/push/json",
		`{"alertcode":"BUSI000","msg":{"message":"disk full"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestPushJSONUnknownCodeErrorEnvelope(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/alertmanager/push/json",
		`{"alertcode":"NOPE","msg":{"message":"x"}}`)

	// 入参错误也回 200，错误通过信封状态表达
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestPushZbxMalformedErrorEnvelope(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/alertmanager/push/zbx", "only|three|fields")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"error"`)
}

func TestPushZbxSuccess(t *testing.T) {
	line := "10001|h1|10.0.0.1|trigger|2024.03.01 10:00:00||1|[DEMO]app|[BUSI000] disk full"
	rec := do(t, newTestRouter(t), http.MethodPost, "/alertmanager/push/zbx?syncdata=1", line)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestPushZbxNotSendMsgStillSucceeds(t *testing.T) {
	line := "10002|h1|10.0.0.1|trigger|2024.03.01 10:00:00||1|[DEMO]app|[BUSI000] disk full"
	rec := do(t, newTestRouter(t), http.MethodPost, "/alertmanager/push/zbx?notsendmsg=1&syncdata=1", line)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestPushPrometheus(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/alertmanager/pushaltermsgpms?syncdata=1",
		`{"alertcode":"BUSI000","project":"DEMO","msg":{"message":"cpu high"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodGet, "/alertmanager/push/json", "")
	require.NotEqual(t, http.StatusOK, rec.Code)
}
