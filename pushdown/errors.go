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

import "errors"

var (
	// ErrNotPushable 条件无法用 ES 过滤表达，跳过即可，不是错误
	ErrNotPushable = errors.New("predicate cannot be pushed down")

	// ErrMalformedInterval "<@" 收到的区间字面量格式错误
	// 调用方违反约定，必须中止查询，忽略它可能放入区间外的行
	ErrMalformedInterval = errors.New("malformed interval literal")
)
