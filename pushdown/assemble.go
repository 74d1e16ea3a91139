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

import (
	"fmt"

	"github.com/olivere/elastic/v7"
)

// IdentityField 文档标识字段，由检索层从命中结果的外层信封中取得，不属于 _source
const IdentityField = "_id"

// BoolQuery 编译后的查询
type BoolQuery struct {
	Must            *FilterList
	MustNot         *FilterList
	ProjectedFields []string
	// Size 为 nil 表示不限制；估算行数时为 0
	Size *int
	// FetchAll 为 true 时取回完整 _source（存在 JSON 类型列时需要整条记录）
	FetchAll bool
}

// Assemble 组装 bool 查询
// 投影字段去重并排除 IdentityField。
func Assemble(must, mustNot *FilterList, projected []string, limit *int) *BoolQuery {
	if must == nil {
		must = NewFilterList()
	}
	if mustNot == nil {
		mustNot = NewFilterList()
	}

	seen := make(map[string]bool, len(projected))
	fields := make([]string, 0, len(projected))
	for _, f := range projected {
		if f == IdentityField || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}

	return &BoolQuery{
		Must:            must,
		MustNot:         mustNot,
		ProjectedFields: fields,
		Size:            limit,
	}
}

// Unconstrained 两个列表都为空，匹配全部文档
func (b *BoolQuery) Unconstrained() bool {
	return b.Must.Empty() && b.MustNot.Empty()
}

// Query 渲染为 ES 查询
func (b *BoolQuery) Query() elastic.Query {
	if b.Unconstrained() {
		return elastic.NewMatchAllQuery()
	}

	q := elastic.NewBoolQuery()
	if !b.Must.Empty() {
		q.Must(renderAll(b.Must.Clauses())...)
	}
	if !b.MustNot.Empty() {
		q.MustNot(renderAll(b.MustNot.Clauses())...)
	}
	return q
}

// SearchSource 渲染为完整的搜索请求体：query + _source + size
func (b *BoolQuery) SearchSource() *elastic.SearchSource {
	ss := elastic.NewSearchSource().Query(b.Query())

	switch {
	case b.FetchAll:
		ss.FetchSource(true)
	case len(b.ProjectedFields) == 0:
		ss.FetchSource(false)
	default:
		ss.FetchSourceContext(elastic.NewFetchSourceContext(true).Include(b.ProjectedFields...))
	}

	if b.Size != nil {
		ss.Size(*b.Size)
	}
	return ss
}

// Source 实现 elastic.Query，返回请求体
func (b *BoolQuery) Source() (interface{}, error) {
	return b.SearchSource().Source()
}

// ========== 子句渲染 ==========

func renderAll(clauses []FilterClause) []elastic.Query {
	out := make([]elastic.Query, 0, len(clauses))
	for _, c := range clauses {
		out = append(out, Render(c))
	}
	return out
}

// Render 将单个子句渲染为 ES 查询
func Render(c FilterClause) elastic.Query {
	switch cl := c.(type) {
	case TermClause:
		term := elastic.NewTermQuery(cl.Field, cl.Value)
		if cl.Negated {
			return elastic.NewBoolQuery().MustNot(term)
		}
		return term

	case TermsClause:
		return elastic.NewTermsQuery(cl.Field, cl.Values...)

	case ExistsClause:
		return elastic.NewExistsQuery(cl.Field)

	case MissingClause:
		// ES 5 起 missing 查询被移除，用 must_not exists 表达
		return elastic.NewBoolQuery().MustNot(elastic.NewExistsQuery(cl.Field))

	case PrefixClause:
		return elastic.NewPrefixQuery(cl.Field, cl.Value)

	case RegexpClause:
		return regexpQuery(cl)

	case RangeClause:
		r := elastic.NewRangeQuery(cl.Field)
		if cl.Gt != nil {
			r.Gt(cl.Gt)
		}
		if cl.Gte != nil {
			r.Gte(cl.Gte)
		}
		if cl.Lt != nil {
			r.Lt(cl.Lt)
		}
		if cl.Lte != nil {
			r.Lte(cl.Lte)
		}
		return r

	case CompositeClause:
		q := elastic.NewBoolQuery()
		children := renderAll(cl.Clauses)
		if cl.Combinator == CombineOr {
			q.Should(children...).MinimumNumberShouldMatch(1)
		} else {
			q.Must(children...)
		}
		return q
	}

	panic(fmt.Sprintf("pushdown: unknown filter clause %T", c))
}

// regexpQuery regexp 查询
type regexpQuery RegexpClause

func (q regexpQuery) Source() (interface{}, error) {
	return map[string]interface{}{
		"regexp": map[string]interface{}{
			q.Field: map[string]interface{}{"value": q.Pattern},
		},
	}, nil
}
