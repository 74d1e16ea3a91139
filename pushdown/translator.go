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
	"errors"
)

// FieldResolver 将列名映射为 ES 字段路径
type FieldResolver func(column string) string

// Tracer 单次查询的诊断输出
type Tracer interface {
	Logf(format string, args ...interface{})
}

// Translator 将一组限定条件翻译为 must / must_not 两个子句列表
// 不持有跨查询的状态，每次查询新建一个即可。
type Translator struct {
	resolve FieldResolver
	trace   Tracer
}

// NewTranslator 创建翻译器；resolve 为 nil 时字段名即列名，trace 可以为 nil
func NewTranslator(resolve FieldResolver, trace Tracer) *Translator {
	if resolve == nil {
		resolve = func(column string) string { return column }
	}
	return &Translator{resolve: resolve, trace: trace}
}

func (t *Translator) logf(format string, args ...interface{}) {
	if t.trace != nil {
		t.trace.Logf(format, args...)
	}
}

// Translate 翻译全部限定条件
// 只有 ErrMalformedInterval 这类调用方错误会返回 error，不可下推的条件被跳过。
func (t *Translator) Translate(quals []Qualifier) (must, mustNot *FilterList, err error) {
	must = NewFilterList()
	mustNot = NewFilterList()
	for _, q := range quals {
		if err := t.Expand(q, must, mustNot); err != nil {
			return nil, nil, err
		}
	}
	return must, mustNot, nil
}

// Expand 按量词展开一个限定条件并写入 must / mustNot
func (t *Translator) Expand(q Qualifier, must, mustNot *FilterList) error {
	field := t.resolve(q.Field)

	switch q.Quantifier {
	case QuantifierAny:
		return t.expandAny(q, field, must, mustNot)
	case QuantifierAll:
		return t.expandAll(q, field, must, mustNot)
	case QuantifierNone:
		return t.process(must, mustNot, field, q.Operator, q.Value)
	}

	t.logf("skip %s: unknown quantifier %q", q, q.Quantifier)
	return nil
}

// process 规范化运算符并编译到对应列表
func (t *Translator) process(must, mustNot *FilterList, field, operator string, value interface{}) error {
	base, negated := Normalize(operator, value)
	if !IsPushable(base) {
		t.logf("skip %s %s %v: operator not pushable", field, operator, value)
		return nil
	}

	list := must
	if negated {
		list = mustNot
	}
	return t.compile(list, field, base, value)
}

// compile 调用 Compile，并把 ErrNotPushable 转为跳过
func (t *Translator) compile(list *FilterList, field, operator string, value interface{}) error {
	err := Compile(list, field, operator, value)
	if errors.Is(err, ErrNotPushable) {
		t.logf("skip %s %s %v: %v", field, operator, value, err)
		return nil
	}
	return err
}

// expandAny col op ANY(array)
//
// "=" 直接生成 terms。其他运算符逐元素编译后组合：
// 正向时用 OR 放入 must；取反时用 AND 放入 must_not，
// 即 a <> ANY(x, y, z) => NOT (a = x AND a = y AND a = z)。
// NULL 元素的比较结果永远不为真，直接忽略。
func (t *Translator) expandAny(q Qualifier, field string, must, mustNot *FilterList) error {
	elems, ok := q.elements()
	if !ok {
		t.logf("skip %s: ANY requires an array value", q)
		return nil
	}
	values := nonNull(elems)

	if q.Operator == OpEqual {
		must.AppendTerms(field, values)
		return nil
	}

	sub := NewFilterList()
	negated := false
	for i, elem := range values {
		base, neg := Normalize(q.Operator, elem)
		if !IsPushable(base) {
			t.logf("skip %s: operator not pushable", q)
			return nil
		}
		if i == 0 {
			negated = neg
		} else if neg != negated {
			t.logf("skip %s: mixed negation across elements", q)
			return nil
		}

		err := Compile(sub, field, base, elem)
		if errors.Is(err, ErrNotPushable) {
			t.logf("skip %s: %v", q, err)
			return nil
		}
		if err != nil {
			return err
		}
	}

	if sub.Empty() {
		t.logf("skip %s: no comparable elements", q)
		return nil
	}

	if negated {
		mustNot.AppendComposite(CombineAnd, sub)
	} else {
		must.AppendComposite(CombineOr, sub)
	}
	return nil
}

// expandAll col op ALL(array)
//
// "<>" 生成 must_not terms，即 NOT (a = x OR a = y OR a = z)。
// 其他运算符逐元素作为独立条件编译，同一列表内的子句天然是 AND 关系。
func (t *Translator) expandAll(q Qualifier, field string, must, mustNot *FilterList) error {
	elems, ok := q.elements()
	if !ok {
		t.logf("skip %s: ALL requires an array value", q)
		return nil
	}
	values := nonNull(elems)

	if q.Operator == OpNotEqual {
		mustNot.AppendTerms(field, values)
		return nil
	}

	for _, elem := range values {
		if err := t.process(must, mustNot, field, q.Operator, elem); err != nil {
			return err
		}
	}
	return nil
}

// nonNull 去掉数组中的 NULL 元素
func nonNull(elems []interface{}) []interface{} {
	out := make([]interface{}, 0, len(elems))
	for _, e := range elems {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
