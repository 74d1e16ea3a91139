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

// Package pushdown 将宿主查询引擎下推的关系型限定条件（qualifier）
// 编译为 Elasticsearch 的 bool 查询。
//
// 编译只会收窄结果集：无法用 ES 过滤语言表达的条件直接跳过，
// 由宿主在取回数据后重新校验，因此不会错误地排除任何一行。
package pushdown

import (
	"fmt"
	"strings"
)

// Quantifier 数组比较量词（col op ANY(array) / col op ALL(array)）
type Quantifier string

const (
	// QuantifierNone 普通标量比较
	QuantifierNone Quantifier = ""
	// QuantifierAny 数组中任一元素满足
	QuantifierAny Quantifier = "any"
	// QuantifierAll 数组中所有元素满足
	QuantifierAll Quantifier = "all"
)

// ParseQuantifier 解析量词，大小写不敏感
func ParseQuantifier(s string) (Quantifier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return QuantifierNone, nil
	case "any":
		return QuantifierAny, nil
	case "all":
		return QuantifierAll, nil
	default:
		return QuantifierNone, fmt.Errorf("unknown quantifier %q", s)
	}
}

// Qualifier 单个关系型过滤谓词
// Operator 可以带否定前缀 '!'；Value 为 nil 时 "=" 表示 IS NULL，"<>" 表示 IS NOT NULL。
// 带量词时 Value 必须是数组。
type Qualifier struct {
	Field      string      `json:"field" msgpack:"field"`
	Operator   string      `json:"operator" msgpack:"operator"`
	Value      interface{} `json:"value" msgpack:"value"`
	Quantifier Quantifier  `json:"quantifier,omitempty" msgpack:"quantifier,omitempty"`
}

// String 返回便于日志输出的形式
func (q Qualifier) String() string {
	switch q.Quantifier {
	case QuantifierAny:
		return fmt.Sprintf("%s %s ANY(%v)", q.Field, q.Operator, q.Value)
	case QuantifierAll:
		return fmt.Sprintf("%s %s ALL(%v)", q.Field, q.Operator, q.Value)
	default:
		return fmt.Sprintf("%s %s %v", q.Field, q.Operator, q.Value)
	}
}

// elements 将量词条件的值展开为元素列表
func (q Qualifier) elements() ([]interface{}, bool) {
	switch v := q.Value.(type) {
	case []interface{}:
		return v, true
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
