package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cheo/apps/api/echo"
	"github.com/trezcool/cheo/core"
	"github.com/trezcool/cheo/core/leaderboard"
	"github.com/trezcool/cheo/core/ranking"
	"github.com/trezcool/cheo/services/metrics"
	"github.com/trezcool/cheo/storage"
	"github.com/trezcool/cheo/storage/database/inmem"
	"github.com/trezcool/cheo/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData interface{} // compared as JSON when set
}

type testApp struct {
	server  *echoapi.Server
	mem     *inmemdb.DB
	metrics *metricsvc.Recorder
}

func setup(t *testing.T, configure ...func(conf *core.Config)) testApp {
	conf := testutil.NewConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger(conf)

	mem := testutil.OpenInMemDB(t)
	store := storage.NewInMemStore(mem)
	recorder := metricsvc.NewRecorder()

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		RankingSvc:     ranking.NewService(store.Tx, store.RankingRepo, logger, conf),
		LeaderboardSvc: leaderboard.NewService(store.Tx, store.LeaderboardRepo, logger),
		Metrics:        recorder,
		DisableReqLogs: true,
	})
	return testApp{server: server, mem: mem, metrics: recorder}
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	return req, httptest.NewRecorder()
}

func (app testApp) do(t *testing.T, method, path string, data ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newRequest(method, path, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

func marshal(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data [][]byte
			if tt.body != nil {
				data = append(data, tt.body)
			}
			rec := app.do(t, tt.method, tt.path, data...)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantData != nil {
				assert.JSONEq(t, string(marshal(t, tt.wantData)), rec.Body.String())
			}
		})
	}
}
