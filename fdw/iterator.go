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
	"context"

	"github.com/lscgzwd/tigerfdw/backend"
	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/row"
)

// RowIterator 单次遍历的行迭代器，Next 在结束时返回 io.EOF
type RowIterator struct {
	docs    backend.Iterator
	rows    *row.Materializer
	queryID string
	count   int64
	debug   *logger.FieldLogger
}

// Next 返回下一行
func (it *RowIterator) Next(ctx context.Context) (row.Row, error) {
	doc, err := it.docs.Next(ctx)
	if err != nil {
		return nil, err
	}
	it.count++
	r := it.rows.Row(doc)
	if it.debug != nil {
		it.debug.Warn("hit %s/%s source=%v row=%v", doc.Index, doc.ID, doc.Source, r)
	}
	return r, nil
}

// QueryID 本次查询的标识
func (it *RowIterator) QueryID() string {
	return it.queryID
}

// Count 已返回的行数
func (it *RowIterator) Count() int64 {
	return it.count
}

// Close 释放后端资源
func (it *RowIterator) Close(ctx context.Context) error {
	return it.docs.Close(ctx)
}
