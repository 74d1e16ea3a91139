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

// Package catalog 管理外部表定义：表到索引的映射以及列到字段的映射。
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lscgzwd/tigerfdw/row"
)

var (
	// ErrTableNotFound 表未定义
	ErrTableNotFound = errors.New("table not found")
	// ErrUnknownColumn 请求的列不在表定义中
	ErrUnknownColumn = errors.New("unknown column")
)

// IdentityColumn 映射到文档 _id 的特殊列名
const IdentityColumn = "_id"

// 输出整条 _source 的列类型
var jsonTypes = map[string]bool{
	"json":  true,
	"jsonb": true,
}

// Table 外部表定义
type Table struct {
	Name    string       `json:"name" yaml:"name"`
	Indices []string     `json:"indices" yaml:"indices"`
	DocType string       `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	Columns []ColumnSpec `json:"columns" yaml:"columns"`
	// LogLevel 查询诊断信息的输出级别，默认 info
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	// Debug 为 true 时逐条记录命中结果，输出量很大
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// ColumnSpec 列定义
type ColumnSpec struct {
	Name    string        `json:"name" yaml:"name"`
	Type    string        `json:"type,omitempty" yaml:"type,omitempty"`
	Options ColumnOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// ColumnOptions 列选项
type ColumnOptions struct {
	ESField       string `json:"es_field,omitempty" yaml:"es_field,omitempty"`
	ESProperty    string `json:"es_property,omitempty" yaml:"es_property,omitempty"` // es_field 的别名
	ListSeparator *string `json:"list_separator,omitempty" yaml:"list_separator,omitempty"` // nil 时取默认值，显式空串表示直接拼接
}

// Field 列对应的 ES 字段路径，未配置时与列名相同
func (c ColumnSpec) Field() string {
	switch {
	case c.Options.ESField != "":
		return c.Options.ESField
	case c.Options.ESProperty != "":
		return c.Options.ESProperty
	default:
		return c.Name
	}
}

// Separator 数组值的拼接分隔符
func (c ColumnSpec) Separator() string {
	if c.Options.ListSeparator == nil {
		return row.DefaultSeparator
	}
	return *c.Options.ListSeparator
}

// IsJSON 列类型为 json / jsonb
func (c ColumnSpec) IsJSON() bool {
	return jsonTypes[strings.ToLower(c.Type)]
}

// Validate 验证表定义
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("table cannot be nil")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if len(t.Indices) == 0 {
		return fmt.Errorf("table %s: at least one index is required", t.Name)
	}
	for _, idx := range t.Indices {
		if strings.TrimSpace(idx) == "" {
			return fmt.Errorf("table %s: index name cannot be empty", t.Name)
		}
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: at least one column is required", t.Name)
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s: column name cannot be empty", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s: duplicate column name: %s", t.Name, c.Name)
		}
		seen[c.Name] = true
	}

	switch strings.ToLower(t.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("table %s: invalid log level: %s", t.Name, t.LogLevel)
	}
	return nil
}

// Column 按名称查找列定义
func (t *Table) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// FieldResolver 列名到字段路径的映射，未定义的列按原名处理
func (t *Table) FieldResolver() func(column string) string {
	fields := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		fields[c.Name] = c.Field()
	}
	return func(column string) string {
		if f, ok := fields[column]; ok {
			return f
		}
		return column
	}
}

// Resolve 将请求的列名解析为物化所需的列
// names 为空时返回全部列。
func (t *Table) Resolve(names []string) ([]row.Column, error) {
	if len(names) == 0 {
		names = make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = c.Name
		}
	}

	cols := make([]row.Column, 0, len(names))
	for _, name := range names {
		spec, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, name)
		}
		field := spec.Field()
		cols = append(cols, row.Column{
			Name:      spec.Name,
			Field:     field,
			Separator: spec.Separator(),
			JSON:      spec.IsJSON(),
			Identity:  spec.Name == IdentityColumn || field == IdentityColumn,
		})
	}
	return cols, nil
}
