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
	"strings"
	"time"
)

// endpointTimeLayout 区间端点可识别的时间格式，可带 1 到 6 位小数秒
// time.Parse 在秒之后会自动接受任意位数的小数，位数由 validFraction 限制。
const endpointTimeLayout = "2006-01-02 15:04:05"

// maxEndpointFraction 小数秒最多位数（微秒）
const maxEndpointFraction = 6

// endpointOutputLayout 时间端点输出格式
const endpointOutputLayout = "2006-01-02T15:04:05.000000"

// Compile 将一个已规范化的 (field, operator, value) 编译为子句并追加到 list
//
// operator 必须是 IsPushable 认可的基础运算符（已去掉 '!' 前缀）。
// 返回 ErrNotPushable 时 list 不会被修改。
func Compile(list *FilterList, field, operator string, value interface{}) error {
	switch operator {
	case OpEqual:
		if value == nil {
			list.AppendMissing(field)
		} else {
			list.AppendTerm(field, value, false)
		}
		return nil

	case OpNotEqual:
		if value == nil {
			list.AppendExists(field)
		} else {
			list.AppendTerm(field, value, true)
		}
		return nil

	case OpLike:
		pattern, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: LIKE pattern must be a string, got %T", ErrNotPushable, value)
		}
		compileLike(list, field, pattern)
		return nil

	case OpContainedBy:
		if value == nil {
			return fmt.Errorf("%w: NULL interval", ErrNotPushable)
		}
		r, err := parseInterval(field, value)
		if err != nil {
			return err
		}
		list.AppendRange(r)
		return nil

	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		if value == nil {
			return fmt.Errorf("%w: comparison with NULL", ErrNotPushable)
		}
		r := RangeClause{Field: field}
		switch operator {
		case OpLess:
			r.Lt = value
		case OpLessEqual:
			r.Lte = value
		case OpGreater:
			r.Gt = value
		case OpGreaterEqual:
			r.Gte = value
		}
		list.AppendRange(r)
		return nil
	}

	return fmt.Errorf("%w: operator %q", ErrNotPushable, operator)
}

// ========== LIKE ==========

// likeToken LIKE 模式的词法单元
type likeToken struct {
	kind    byte // 'l' 字面量, '%' 任意串, '_' 任意字符
	literal string
}

// tokenizeLike 按 SQL 规则切分 LIKE 模式，反斜杠转义下一个字符
func tokenizeLike(pattern string) []likeToken {
	var tokens []likeToken
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, likeToken{kind: 'l', literal: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '\\':
			if i+1 < len(runes) {
				i++
				lit.WriteRune(runes[i])
			} else {
				lit.WriteRune(r)
			}
		case '%', '_':
			flush()
			tokens = append(tokens, likeToken{kind: byte(r)})
		default:
			lit.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// compileLike 形如 "abc%" 的模式编译为 prefix，其余编译为 regexp
func compileLike(list *FilterList, field, pattern string) {
	tokens := tokenizeLike(pattern)

	if isPrefixPattern(tokens) {
		prefix := ""
		if len(tokens) == 2 {
			prefix = tokens[0].literal
		}
		list.AppendPrefix(field, prefix)
		return
	}

	list.AppendRegexp(field, likeToRegexp(tokens))
}

// isPrefixPattern 模式形如 "<literal>%"
func isPrefixPattern(tokens []likeToken) bool {
	switch len(tokens) {
	case 1:
		return tokens[0].kind == '%'
	case 2:
		return tokens[0].kind == 'l' && tokens[1].kind == '%'
	default:
		return false
	}
}

// likeToRegexp 字面量部分转义，'%' 展开为 ".*"，'_' 展开为 "."
func likeToRegexp(tokens []likeToken) string {
	var b strings.Builder
	for _, t := range tokens {
		switch t.kind {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(EscapeRegexp(t.literal))
		}
	}
	return b.String()
}

// Lucene 正则保留字符，加上 ^ 和 $ 以便与 RE2 语义一致
const regexpReserved = `.?+*|{}[]()"\#@&<>~^$`

// EscapeRegexp 转义 ES regexp 查询中的全部保留字符
func EscapeRegexp(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(regexpReserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ========== 区间 ==========

// parseInterval 解析 `["start","end")` 形式的区间字面量
// '[' / ']' 为闭区间（gte/lte），'(' / ')' 为开区间（gt/lt）。
// 空端点以及 infinity / -infinity 表示该端无边界。
func parseInterval(field string, value interface{}) (RangeClause, error) {
	literal, ok := value.(string)
	if !ok {
		return RangeClause{}, fmt.Errorf("%w: expected string, got %T", ErrMalformedInterval, value)
	}
	if literal == "empty" {
		return RangeClause{}, fmt.Errorf("%w: empty interval", ErrNotPushable)
	}
	if len(literal) < 3 {
		return RangeClause{}, fmt.Errorf("%w: %q", ErrMalformedInterval, literal)
	}

	lower, upper := literal[0], literal[len(literal)-1]
	if (lower != '[' && lower != '(') || (upper != ']' && upper != ')') {
		return RangeClause{}, fmt.Errorf("%w: unbalanced brackets in %q", ErrMalformedInterval, literal)
	}

	parts := strings.Split(literal[1:len(literal)-1], ",")
	if len(parts) != 2 {
		return RangeClause{}, fmt.Errorf("%w: expected two endpoints in %q", ErrMalformedInterval, literal)
	}

	r := RangeClause{Field: field}
	if start, bounded := formatEndpoint(parts[0]); bounded {
		if lower == '[' {
			r.Gte = start
		} else {
			r.Gt = start
		}
	}
	if end, bounded := formatEndpoint(parts[1]); bounded {
		if upper == ']' {
			r.Lte = end
		} else {
			r.Lt = end
		}
	}
	return r, nil
}

// formatEndpoint 去掉引号并尝试按时间格式规范化
// 第二个返回值为 false 表示该端无边界
func formatEndpoint(endpoint string) (string, bool) {
	endpoint = strings.ReplaceAll(endpoint, `"`, "")
	switch endpoint {
	case "", "infinity", "-infinity":
		return "", false
	}
	if validFraction(endpoint) {
		if t, err := time.Parse(endpointTimeLayout, endpoint); err == nil {
			return t.Format(endpointOutputLayout), true
		}
	}
	return endpoint, true
}

// validFraction 小数秒部分（若有）为 1 到 maxEndpointFraction 位
// 超出位数的端点不做时间规范化，按原样透传。
func validFraction(endpoint string) bool {
	if len(endpoint) <= len(endpointTimeLayout) {
		return true
	}
	rest := endpoint[len(endpointTimeLayout):]
	if rest[0] != '.' {
		return true
	}
	n := len(rest) - 1
	return n >= 1 && n <= maxEndpointFraction
}
