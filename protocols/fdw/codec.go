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
	"bytes"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"

	"github.com/ohler55/ojg/oj"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lscgzwd/tigerfdw/protocols/fdw/http/common"
	"github.com/lscgzwd/tigerfdw/pushdown"
)

// QueryRequest execute / rel_size / explain 的请求体
//
//	{"quals":[{"field":"status","operator":"=","value":"ok"}],"columns":["_id","status"]}
type QueryRequest struct {
	Quals   []pushdown.Qualifier `json:"quals" msgpack:"quals"`
	Columns []string             `json:"columns" msgpack:"columns"`
}

// DecodeRequest 按 Content-Type 解码请求体
func DecodeRequest(r *http.Request) (*QueryRequest, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return ParseRequest(data, isMsgpack(r.Header.Get("Content-Type")))
}

// ParseRequest 解析请求体，空请求体等价于无条件、全部列
// JSON 和 MessagePack 都先解码为通用值，整数统一为 int64，浮点为 float64。
func ParseRequest(data []byte, asMsgpack bool) (*QueryRequest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &QueryRequest{}, nil
	}

	var (
		raw interface{}
		err error
	)
	if asMsgpack {
		raw, err = decodeMsgpack(data)
	} else {
		raw, err = oj.Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return requestFromValue(raw)
}

func isMsgpack(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == common.ContentTypeMsgpack || mt == "application/x-msgpack"
}

func decodeMsgpack(data []byte) (interface{}, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.DecodeInterfaceLoose()
}

// requestFromValue 将通用值转换为 QueryRequest
func requestFromValue(raw interface{}) (*QueryRequest, error) {
	body, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("request body must be an object, got %T", raw)
	}

	req := &QueryRequest{}
	if v, ok := body["columns"]; ok && v != nil {
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("columns must be an array, got %T", v)
		}
		for i, c := range list {
			name, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("columns[%d] must be a string, got %T", i, c)
			}
			req.Columns = append(req.Columns, name)
		}
	}

	if v, ok := body["quals"]; ok && v != nil {
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("quals must be an array, got %T", v)
		}
		for i, item := range list {
			q, err := qualifierFromValue(item)
			if err != nil {
				return nil, fmt.Errorf("quals[%d]: %w", i, err)
			}
			req.Quals = append(req.Quals, q)
		}
	}
	return req, nil
}

func qualifierFromValue(v interface{}) (pushdown.Qualifier, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return pushdown.Qualifier{}, fmt.Errorf("qualifier must be an object, got %T", v)
	}
	field, _ := m["field"].(string)
	if field == "" {
		return pushdown.Qualifier{}, fmt.Errorf("field is required")
	}
	operator, _ := m["operator"].(string)
	if operator == "" {
		return pushdown.Qualifier{}, fmt.Errorf("operator is required")
	}
	quantifier, _ := m["quantifier"].(string)
	qt, err := pushdown.ParseQuantifier(quantifier)
	if err != nil {
		return pushdown.Qualifier{}, err
	}
	return pushdown.Qualifier{
		Field:      field,
		Operator:   operator,
		Value:      normalizeValue(m["value"]),
		Quantifier: qt,
	}, nil
}

// wantsMsgpack 客户端通过 Accept 请求 MessagePack 行流
func wantsMsgpack(r *http.Request) bool {
	return isMsgpack(r.Header.Get("Accept"))
}

// normalizeValue 统一数值类型：整数为 int64（超出范围的 uint64 保持不变），浮点为 float64
func normalizeValue(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return n
	case float32:
		return float64(n)
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, e := range n {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
