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

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lscgzwd/tigerfdw/row"
)

// fakeCluster 模拟滚动检索、计数和清理滚动上下文
type fakeCluster struct {
	mu       sync.Mutex
	pages    [][]map[string]interface{}
	total    int64
	served   int
	cleared  bool
	bodies   []map[string]interface{}
	paths    []string
	failNext bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies = append(f.bodies, body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/_search/scroll" && r.Method == http.MethodDelete:
		f.cleared = true
		fmt.Fprint(w, `{"succeeded":true,"num_freed":1}`)
	case r.URL.Path == "/_search/scroll" && f.failNext:
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"type":"search_context_missing_exception","reason":"gone"},"status":500}`)
	case r.URL.Path == "/_search/scroll" || (strings.HasSuffix(r.URL.Path, "/_search") && r.URL.Query().Get("scroll") != ""):
		var hits []map[string]interface{}
		if f.served < len(f.pages) {
			hits = f.pages[f.served]
		}
		f.served++
		f.writeResult(w, hits)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		f.writeResult(w, nil)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCluster) writeResult(w http.ResponseWriter, hits []map[string]interface{}) {
	if hits == nil {
		hits = []map[string]interface{}{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"_scroll_id": "scroll-1",
		"took":       1,
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": f.total, "relation": "eq"},
			"hits":  hits,
		},
	})
}

func hit(id string, source string) map[string]interface{} {
	return map[string]interface{}{
		"_index":  "logs",
		"_id":     id,
		"_source": json.RawMessage(source),
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.URLs = []string{srv.URL}
	cfg.ScrollSize = 2
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func drain(t *testing.T, it Iterator) []*row.Document {
	t.Helper()
	var docs []*row.Document
	for {
		doc, err := it.Next(context.Background())
		if err == io.EOF {
			return docs
		}
		require.NoError(t, err)
		docs = append(docs, doc)
	}
}

func TestScanIteratesAllPages(t *testing.T) {
	cluster := &fakeCluster{pages: [][]map[string]interface{}{
		{hit("1", `{"n":1}`), hit("2", `{"n":2,"tags":["a","b"]}`)},
		{hit("3", `{"nested":{"v":"x"}}`)},
	}}
	c := newTestClient(t, cluster)

	src := elastic.NewSearchSource().Query(elastic.NewMatchAllQuery())
	it := c.Scan(context.Background(), &Request{Indices: []string{"logs"}, Source: src})
	docs := drain(t, it)
	require.Len(t, docs, 3)

	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, "logs", docs[0].Index)
	assert.Equal(t, int64(1), docs[0].Source["n"])
	assert.Equal(t, []interface{}{"a", "b"}, docs[1].Source["tags"])
	assert.Equal(t, map[string]interface{}{"v": "x"}, docs[2].Source["nested"])

	// 结束后继续调用仍然返回 EOF
	_, err := it.Next(context.Background())
	assert.Equal(t, io.EOF, err)

	require.NoError(t, it.Close(context.Background()))
	require.NoError(t, it.Close(context.Background()))
	assert.True(t, cluster.cleared)
	assert.Contains(t, cluster.paths[0], "/logs/_search")
}

func TestScanEmptyResult(t *testing.T) {
	c := newTestClient(t, &fakeCluster{})
	it := c.Scan(context.Background(), &Request{Indices: []string{"logs"}, Source: elastic.NewSearchSource()})
	assert.Empty(t, drain(t, it))
}

func TestScanPropagatesBackendErrors(t *testing.T) {
	cluster := &fakeCluster{pages: [][]map[string]interface{}{{hit("1", `{}`), hit("2", `{}`)}}}
	c := newTestClient(t, cluster)
	it := c.Scan(context.Background(), &Request{Indices: []string{"logs"}, Source: elastic.NewSearchSource()})

	_, err := it.Next(context.Background())
	require.NoError(t, err)
	_, err = it.Next(context.Background())
	require.NoError(t, err)

	cluster.mu.Lock()
	cluster.failNext = true
	cluster.mu.Unlock()

	_, err = it.Next(context.Background())
	require.Error(t, err)
	var esErr *elastic.Error
	require.True(t, errors.As(err, &esErr))
	assert.Equal(t, http.StatusInternalServerError, esErr.Status)
}

func TestCount(t *testing.T) {
	cluster := &fakeCluster{total: 42}
	c := newTestClient(t, cluster)

	src := elastic.NewSearchSource().Query(elastic.NewTermQuery("status", "active"))
	n, err := c.Count(context.Background(), &Request{Indices: []string{"logs", "archive"}, Source: src})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	body := cluster.bodies[len(cluster.bodies)-1]
	assert.Equal(t, float64(0), body["size"])
	assert.Equal(t, true, body["track_total_hits"])
	assert.Contains(t, body, "query")
	assert.Contains(t, cluster.paths[len(cluster.paths)-1], "/logs,archive/_search")
}

func TestDecodeHit(t *testing.T) {
	doc, err := DecodeHit(&elastic.SearchHit{Id: "7", Index: "i", Source: json.RawMessage(`{"a":{"b":5},"f":1.5}`)})
	require.NoError(t, err)
	assert.Equal(t, "7", doc.ID)
	assert.Equal(t, int64(5), doc.Source["a"].(map[string]interface{})["b"])
	assert.Equal(t, 1.5, doc.Source["f"])

	doc, err = DecodeHit(&elastic.SearchHit{Id: "8"})
	require.NoError(t, err)
	assert.Empty(t, doc.Source)

	_, err = DecodeHit(&elastic.SearchHit{Id: "9", Source: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
	_, err = DecodeHit(&elastic.SearchHit{Id: "10", Source: json.RawMessage(`{broken`)})
	assert.Error(t, err)
}

func TestSliceIterator(t *testing.T) {
	it := NewSliceIterator([]*row.Document{{ID: "a"}, {ID: "b"}})
	docs := drain(t, it)
	assert.Len(t, docs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSliceIterator([]*row.Document{{ID: "a"}}).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{URLs: []string{"http://es:9200"}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultScrollSize, cfg.ScrollSize)
	assert.Equal(t, DefaultScrollKeepAlive, cfg.ScrollKeepAlive)

	assert.Error(t, (&Config{}).Validate())
}
