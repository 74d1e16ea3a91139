// Copyright (c) 2024 TigerDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fdw

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lscgzwd/tigerfdw/backend"
	"github.com/lscgzwd/tigerfdw/catalog"
	wrapper "github.com/lscgzwd/tigerfdw/fdw"
	"github.com/lscgzwd/tigerfdw/protocols/fdw/middleware"
	"github.com/lscgzwd/tigerfdw/pushdown"
	"github.com/lscgzwd/tigerfdw/row"
)

type stubSearcher struct {
	docs     []*row.Document
	failAt   int // >0 时第 failAt 个文档处返回错误
	err      error
	total    int64
	requests []*backend.Request
	closed   int
}

func (s *stubSearcher) Scan(ctx context.Context, req *backend.Request) backend.Iterator {
	s.requests = append(s.requests, req)
	return &stubIterator{owner: s}
}

func (s *stubSearcher) Count(ctx context.Context, req *backend.Request) (int64, error) {
	s.requests = append(s.requests, req)
	return s.total, s.err
}

type stubIterator struct {
	owner *stubSearcher
	pos   int
}

func (it *stubIterator) Next(ctx context.Context) (*row.Document, error) {
	if it.owner.err != nil && it.pos+1 >= it.owner.failAt {
		return nil, it.owner.err
	}
	if it.pos >= len(it.owner.docs) {
		return nil, io.EOF
	}
	doc := it.owner.docs[it.pos]
	it.pos++
	return doc, nil
}

func (it *stubIterator) Close(ctx context.Context) error {
	it.owner.closed++
	return nil
}

func sampleDocs() []*row.Document {
	return []*row.Document{
		{ID: "1", Index: "logs-1", Source: map[string]interface{}{"status": "ok", "n": int64(1)}},
		{ID: "2", Index: "logs-1", Source: map[string]interface{}{"status": "error", "n": int64(2), "tags": []interface{}{"a", "b"}}},
		{ID: "3", Index: "logs-2", Source: map[string]interface{}{"status": "ok"}},
	}
}

func newGateway(t *testing.T, searcher *stubSearcher, mutate func(*Config)) *FDWServer {
	t.Helper()
	store := catalog.NewMemoryStore()
	require.NoError(t, store.SaveTable(&catalog.Table{
		Name:    "logs",
		Indices: []string{"logs-*"},
		Columns: []catalog.ColumnSpec{
			{Name: "_id", Type: "text"},
			{Name: "status", Type: "text"},
			{Name: "n", Type: "bigint"},
			{Name: "tags", Type: "text"},
			{Name: "ts", Type: "tsrange", Options: catalog.ColumnOptions{ESField: "@timestamp"}},
		},
	}))

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(wrapper.New(store, searcher), cfg)
	require.NoError(t, err)
	return srv
}

func post(h http.Handler, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, w)
	info, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return info["type"].(string)
}

func ndjsonLines(t *testing.T, body []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestListAndGetTables(t *testing.T) {
	h := newGateway(t, &stubSearcher{}, nil).Handler()

	w := get(h, "/_fdw/tables")
	require.Equal(t, http.StatusOK, w.Code)
	tables := decodeBody(t, w)["tables"].([]interface{})
	require.Len(t, tables, 1)
	assert.Equal(t, "logs", tables[0].(map[string]interface{})["name"])

	w = get(h, "/_fdw/tables/logs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"logs-*"}, decodeBody(t, w)["indices"])

	w = get(h, "/_fdw/tables/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "table_not_found_exception", errorType(t, w))
}

func TestExecuteStreamsOneLinePerDocument(t *testing.T) {
	searcher := &stubSearcher{docs: sampleDocs()}
	srv := newGateway(t, searcher, nil)
	h := srv.Handler()

	w := post(h, "/_fdw/tables/logs/_execute",
		`{"quals":[{"field":"status","operator":"=","value":"ok"}],"columns":["_id","status","n","tags"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(HeaderQueryID))

	lines := ndjsonLines(t, w.Body.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, map[string]interface{}{"_id": "1", "status": "ok", "n": float64(1), "tags": nil}, lines[0])
	assert.Equal(t, "a,b", lines[1]["tags"])
	assert.Nil(t, lines[2]["n"])
	assert.Equal(t, 1, searcher.closed)

	require.Len(t, searcher.requests, 1)
	assert.Equal(t, []string{"logs-*"}, searcher.requests[0].Indices)

	m := get(h, "/_metrics")
	assert.Contains(t, m.Body.String(), `tigerfdw_rows_streamed_total{table="logs"} 3`)
}

func TestExecuteEmptyResult(t *testing.T) {
	searcher := &stubSearcher{}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_execute", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, 1, searcher.closed)
}

func TestExecuteMsgpackStream(t *testing.T) {
	searcher := &stubSearcher{docs: sampleDocs()}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_execute",
		`{"columns":["_id","status"]}`, map[string]string{"Accept": "application/msgpack"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/msgpack", w.Header().Get("Content-Type"))

	dec := msgpack.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	var ids []interface{}
	for {
		m, err := dec.DecodeMap()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		ids = append(ids, m["_id"])
	}
	assert.Equal(t, []interface{}{"1", "2", "3"}, ids)
}

func TestExecuteBackendErrorBeforeFirstRow(t *testing.T) {
	searcher := &stubSearcher{
		docs:   sampleDocs(),
		failAt: 1,
		err:    &elastic.Error{Status: http.StatusInternalServerError},
	}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_execute", `{}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "search_phase_execution_exception", errorType(t, w))
	assert.Equal(t, 1, searcher.closed)
}

func TestExecuteBackendErrorMidStream(t *testing.T) {
	searcher := &stubSearcher{
		docs:   sampleDocs(),
		failAt: 3,
		err:    errors.New("scroll expired"),
	}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_execute", `{"columns":["_id"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	lines := ndjsonLines(t, w.Body.Bytes())
	require.Len(t, lines, 3)
	assert.Equal(t, "1", lines[0]["_id"])
	assert.Equal(t, "2", lines[1]["_id"])
	trailer := lines[2]["error"].(map[string]interface{})
	assert.Equal(t, "search_phase_execution_exception", trailer["type"])
	assert.Equal(t, "scroll expired", trailer["reason"])
	assert.Equal(t, float64(http.StatusBadGateway), lines[2]["status"])
}

func TestExecuteCallerErrors(t *testing.T) {
	h := newGateway(t, &stubSearcher{}, nil).Handler()

	w := post(h, "/_fdw/tables/logs/_execute", `{"columns":["nope"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "illegal_argument_exception", errorType(t, w))

	w = post(h, "/_fdw/tables/logs/_execute", `{"quals":[{"field":"ts","operator":"<@","value":"2020-01-01"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed interval")

	w = post(h, "/_fdw/tables/logs/_execute", `{"quals":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h, "/_fdw/tables/logs/_execute", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h, "/_fdw/tables/missing/_execute", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRelSize(t *testing.T) {
	searcher := &stubSearcher{total: 42}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_rel_size",
		`{"quals":[{"field":"n","operator":">","value":5}],"columns":["_id","n"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"rows": float64(42), "width": float64(200)}, decodeBody(t, w))
	assert.Equal(t, 0, searcher.closed)
}

func TestRelSizeBackendError(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("cluster unavailable")}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_rel_size", `{}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestExplain(t *testing.T) {
	searcher := &stubSearcher{}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_explain",
		`{"quals":[{"field":"status","operator":"=","value":["a","b"],"quantifier":"any"},{"field":"n","operator":"@@","value":"x"}],"columns":["status"]}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "logs", body["table"])
	assert.Equal(t, w.Header().Get(HeaderQueryID), body["query_id"])
	query := body["body"].(map[string]interface{})["query"].(map[string]interface{})
	assert.Contains(t, query, "bool")
	assert.NotEmpty(t, body["notes"])
	assert.Empty(t, searcher.requests)
}

func TestMsgpackAndJSONDecodeToSameQualifiers(t *testing.T) {
	jsonBody := `{"quals":[
		{"field":"n","operator":">","value":5},
		{"field":"score","operator":"<=","value":2.5},
		{"field":"status","operator":"=","value":["a","b",null],"quantifier":"any"},
		{"field":"deleted","operator":"=","value":null}
	],"columns":["_id","status"]}`

	mpBody, err := msgpack.Marshal(map[string]interface{}{
		"quals": []interface{}{
			map[string]interface{}{"field": "n", "operator": ">", "value": 5},
			map[string]interface{}{"field": "score", "operator": "<=", "value": 2.5},
			map[string]interface{}{"field": "status", "operator": "=", "value": []interface{}{"a", "b", nil}, "quantifier": "any"},
			map[string]interface{}{"field": "deleted", "operator": "=", "value": nil},
		},
		"columns": []interface{}{"_id", "status"},
	})
	require.NoError(t, err)

	fromJSON, err := ParseRequest([]byte(jsonBody), false)
	require.NoError(t, err)
	fromMsgpack, err := ParseRequest(mpBody, true)
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromMsgpack)
	assert.Equal(t, int64(5), fromJSON.Quals[0].Value)
	assert.Equal(t, pushdown.QuantifierAny, fromJSON.Quals[2].Quantifier)
	assert.Nil(t, fromJSON.Quals[3].Value)
}

func TestExecuteWithMsgpackRequest(t *testing.T) {
	body, err := msgpack.Marshal(map[string]interface{}{"columns": []interface{}{"_id"}})
	require.NoError(t, err)

	searcher := &stubSearcher{docs: sampleDocs()}
	w := post(newGateway(t, searcher, nil).Handler(), "/_fdw/tables/logs/_execute", string(body),
		map[string]string{"Content-Type": "application/msgpack"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, ndjsonLines(t, w.Body.Bytes()), 3)
}

func TestParseRequestErrors(t *testing.T) {
	for _, body := range []string{
		`[]`,
		`{"columns":"a"}`,
		`{"columns":[1]}`,
		`{"quals":[1]}`,
		`{"quals":[{"operator":"="}]}`,
		`{"quals":[{"field":"a"}]}`,
		`{"quals":[{"field":"a","operator":"=","quantifier":"some"}]}`,
	} {
		_, err := ParseRequest([]byte(body), false)
		assert.Error(t, err, body)
	}

	req, err := ParseRequest([]byte("  "), false)
	require.NoError(t, err)
	assert.Empty(t, req.Quals)
	assert.Empty(t, req.Columns)
}

func TestGatewayAuth(t *testing.T) {
	srv := newGateway(t, &stubSearcher{}, func(c *Config) {
		c.Auth = &middleware.AuthConfig{Enabled: true, Type: middleware.AuthAPIKey, APIKeys: []string{"k"}}
	})
	h := srv.Handler()

	assert.Equal(t, http.StatusUnauthorized, get(h, "/_fdw/tables").Code)
	assert.Equal(t, http.StatusOK, get(h, "/_health").Code)

	req := httptest.NewRequest(http.MethodGet, "/_fdw/tables", nil)
	req.Header.Set("X-API-Key", "k")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFDWServerIdentity(t *testing.T) {
	srv := newGateway(t, &stubSearcher{}, nil)
	assert.Equal(t, "fdw", srv.Name())
	assert.False(t, srv.IsRunning())
	assert.Equal(t, "0.0.0.0:5480", srv.Address())
	assert.NoError(t, srv.Stop())
}
