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

package pushdown

// ========== 过滤子句 ==========

// FilterClause ES 过滤子句
// 子句集合是封闭的，只能由本包构造；组装时通过 type switch 渲染。
type FilterClause interface {
	clause()
}

// TermClause 精确匹配；Negated 为 true 时表示 field 不等于 Value
type TermClause struct {
	Field   string
	Value   interface{}
	Negated bool
}

// TermsClause field IN (Values...)
type TermsClause struct {
	Field  string
	Values []interface{}
}

// ExistsClause 字段存在且非空（IS NOT NULL）
type ExistsClause struct {
	Field string
}

// MissingClause 字段不存在或为空（IS NULL）
type MissingClause struct {
	Field string
}

// PrefixClause 前缀匹配
type PrefixClause struct {
	Field string
	Value string
}

// RegexpClause 正则匹配（Lucene 正则语法，整串锚定）
type RegexpClause struct {
	Field   string
	Pattern string
}

// RangeClause 区间匹配，nil 表示该端无边界
type RangeClause struct {
	Field string
	Gt    interface{}
	Gte   interface{}
	Lt    interface{}
	Lte   interface{}
}

// Combinator 组合子句的逻辑连接词
type Combinator string

const (
	CombineAnd Combinator = "and"
	CombineOr  Combinator = "or"
)

// CompositeClause 由同一个限定条件展开出的子句组合
type CompositeClause struct {
	Combinator Combinator
	Clauses    []FilterClause
}

func (TermClause) clause()      {}
func (TermsClause) clause()     {}
func (ExistsClause) clause()    {}
func (MissingClause) clause()   {}
func (PrefixClause) clause()    {}
func (RegexpClause) clause()    {}
func (RangeClause) clause()     {}
func (CompositeClause) clause() {}

// ========== 子句列表 ==========

// FilterList 有序的子句列表
// 每次查询持有两个实例：must（全部成立）和 must_not（全部不成立）。
type FilterList struct {
	clauses []FilterClause
}

// NewFilterList 创建空列表
func NewFilterList() *FilterList {
	return &FilterList{}
}

// Append 追加任意子句
func (l *FilterList) Append(c FilterClause) {
	l.clauses = append(l.clauses, c)
}

// AppendTerm 追加 term 子句
func (l *FilterList) AppendTerm(field string, value interface{}, negated bool) {
	l.Append(TermClause{Field: field, Value: value, Negated: negated})
}

// AppendTerms 追加 terms 子句
func (l *FilterList) AppendTerms(field string, values []interface{}) {
	copied := make([]interface{}, len(values))
	copy(copied, values)
	l.Append(TermsClause{Field: field, Values: copied})
}

// AppendExists 追加 exists 子句
func (l *FilterList) AppendExists(field string) {
	l.Append(ExistsClause{Field: field})
}

// AppendMissing 追加 missing 子句
func (l *FilterList) AppendMissing(field string) {
	l.Append(MissingClause{Field: field})
}

// AppendPrefix 追加 prefix 子句
func (l *FilterList) AppendPrefix(field, prefix string) {
	l.Append(PrefixClause{Field: field, Value: prefix})
}

// AppendRegexp 追加 regexp 子句
func (l *FilterList) AppendRegexp(field, pattern string) {
	l.Append(RegexpClause{Field: field, Pattern: pattern})
}

// AppendRange 追加 range 子句
func (l *FilterList) AppendRange(r RangeClause) {
	l.Append(r)
}

// AppendComposite 将 sub 中的子句按 combinator 组合为一个子句追加
func (l *FilterList) AppendComposite(combinator Combinator, sub *FilterList) {
	l.Append(CompositeClause{Combinator: combinator, Clauses: sub.Clauses()})
}

// Len 子句数量
func (l *FilterList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.clauses)
}

// Empty 列表是否为空
func (l *FilterList) Empty() bool {
	return l.Len() == 0
}

// Clauses 返回子句副本
func (l *FilterList) Clauses() []FilterClause {
	if l == nil {
		return nil
	}
	out := make([]FilterClause, len(l.clauses))
	copy(out, l.clauses)
	return out
}
