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

// Package row 将检索到的文档转换为宿主引擎需要的行。
package row

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// DefaultSeparator 数组值拼接时的默认分隔符
const DefaultSeparator = ","

// Document 一条命中结果
type Document struct {
	ID     string
	Index  string
	Source map[string]interface{}
}

// Column 解析后的列定义，每次查询解析一次
type Column struct {
	Name      string
	Field     string // ES 字段路径，可以是 "a.b.c" 形式的嵌套路径
	Separator string // 数组拼接分隔符，按原样使用
	JSON      bool // json / jsonb 列输出整条 _source
	Identity  bool // 绑定到 _id 的列取命中结果的文档标识
}

// Row 列名到值的映射
type Row map[string]interface{}

// Materializer 按固定的列集合把文档转换为行
type Materializer struct {
	columns []Column
	paths   []jp.Expr
}

// NewMaterializer 预先编译每一列的字段路径
func NewMaterializer(columns []Column) *Materializer {
	m := &Materializer{
		columns: columns,
		paths:   make([]jp.Expr, len(columns)),
	}
	for i, col := range columns {
		if col.Identity || col.JSON {
			continue
		}
		m.paths[i] = fieldPath(col.Field)
	}
	return m
}

// fieldPath 按 '.' 切分字段并逐段构建子节点表达式
// 不走 jp.ParseString，字段名里的 '$'、'[' 等字符按字面处理
func fieldPath(field string) jp.Expr {
	var x jp.Expr
	for _, seg := range strings.Split(field, ".") {
		x = x.C(seg)
	}
	return x
}

// Row 转换一条文档
func (m *Materializer) Row(doc *Document) Row {
	r := make(Row, len(m.columns))
	for i, col := range m.columns {
		switch {
		case col.Identity:
			r[col.Name] = doc.ID
		case col.JSON:
			r[col.Name] = oj.JSON(sourceOf(doc), &oj.Options{Sort: true})
		default:
			r[col.Name] = flatten(m.paths[i].First(sourceOf(doc)), col.Separator)
		}
	}
	return r
}

// Materialize 单条文档的便捷入口
func Materialize(doc *Document, columns []Column) Row {
	return NewMaterializer(columns).Row(doc)
}

func sourceOf(doc *Document) map[string]interface{} {
	if doc.Source == nil {
		return map[string]interface{}{}
	}
	return doc.Source
}

// flatten 数组拼接为字符串，其余值原样返回
func flatten(v interface{}, sep string) interface{} {
	list, ok := v.([]interface{})
	if !ok {
		return v
	}
	parts := make([]string, len(list))
	for i, elem := range list {
		parts[i] = stringify(elem)
	}
	return strings.Join(parts, sep)
}

// stringify 数组元素的字符串形式；对象、数组和 null 输出 JSON
func stringify(v interface{}) string {
	switch e := v.(type) {
	case string:
		return e
	case nil, map[string]interface{}, []interface{}:
		return oj.JSON(e, &oj.Options{Sort: true})
	default:
		return fmt.Sprint(e)
	}
}
