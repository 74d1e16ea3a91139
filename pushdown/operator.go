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

import "strings"

// 可下推的运算符及其说明
const (
	OpEqual        = "="
	OpNotEqual     = "<>"
	OpLike         = "~~"
	OpContainedBy  = "<@"
	OpLess         = "<"
	OpGreater      = ">"
	OpLessEqual    = "<="
	OpGreaterEqual = ">="

	// NegationMarker 否定前缀，例如 "!~~" 表示 NOT LIKE
	NegationMarker = "!"
)

var pushableOperators = map[string]bool{
	OpEqual:        true,
	OpNotEqual:     true,
	OpLike:         true,
	OpContainedBy:  true,
	OpLess:         true,
	OpGreater:      true,
	OpLessEqual:    true,
	OpGreaterEqual: true,
}

// IsPushable 判断规范化后的运算符能否下推到 ES
func IsPushable(operator string) bool {
	return pushableOperators[operator]
}

// Normalize 将运算符规范化为 (基础运算符, 是否取反)
//
// 带 '!' 前缀的运算符按其正向形式处理，结果放入 must_not。
// "<>" 加非空值改写为取反的 "="；"<>" 加空值（IS NOT NULL）保持不变，由编译器生成 exists。
// "!<>" 加非空值两次取反，得到正向的 "="。
func Normalize(operator string, value interface{}) (string, bool) {
	negated := false
	if strings.HasPrefix(operator, NegationMarker) {
		operator = operator[len(NegationMarker):]
		negated = true
	}
	if operator == OpNotEqual && value != nil {
		return OpEqual, !negated
	}
	return operator, negated
}
