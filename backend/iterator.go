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

package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/ohler55/ojg/oj"
	"github.com/olivere/elastic/v7"

	"github.com/lscgzwd/tigerfdw/row"
)

// Iterator 单次遍历的文档迭代器
// Next 在结果耗尽后返回 io.EOF；Close 可重复调用。
type Iterator interface {
	Next(ctx context.Context) (*row.Document, error)
	Close(ctx context.Context) error
}

type scrollIterator struct {
	scroll  *elastic.ScrollService
	indices []string
	hits    []*elastic.SearchHit
	pos     int
	pages   int
	done    bool
	closed  bool
}

func (it *scrollIterator) Next(ctx context.Context) (*row.Document, error) {
	for it.pos >= len(it.hits) {
		if it.done || it.closed {
			return nil, io.EOF
		}
		res, err := it.scroll.Do(ctx)
		if err == io.EOF {
			it.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("scroll %v page %d: %w", it.indices, it.pages, err)
		}
		it.pages++
		if res.Hits == nil || len(res.Hits.Hits) == 0 {
			it.done = true
			return nil, io.EOF
		}
		it.hits = res.Hits.Hits
		it.pos = 0
	}

	hit := it.hits[it.pos]
	it.pos++
	return DecodeHit(hit)
}

// Close 清理服务端的滚动上下文
func (it *scrollIterator) Close(ctx context.Context) error {
	if it.closed {
		return nil
	}
	it.closed = true
	if err := it.scroll.Clear(ctx); err != nil {
		return fmt.Errorf("clear scroll %v: %w", it.indices, err)
	}
	return nil
}

// DecodeHit 解析命中结果；整数保持为 int64
func DecodeHit(hit *elastic.SearchHit) (*row.Document, error) {
	doc := &row.Document{
		ID:     hit.Id,
		Index:  hit.Index,
		Source: map[string]interface{}{},
	}
	if len(hit.Source) == 0 {
		return doc, nil
	}

	v, err := oj.Parse(hit.Source)
	if err != nil {
		return nil, fmt.Errorf("decode hit %s/%s: %w", hit.Index, hit.Id, err)
	}
	switch src := v.(type) {
	case map[string]interface{}:
		doc.Source = src
	case nil:
	default:
		return nil, fmt.Errorf("decode hit %s/%s: _source is %T, not an object", hit.Index, hit.Id, v)
	}
	return doc, nil
}

// SliceIterator 遍历内存中的文档
type SliceIterator struct {
	docs []*row.Document
	pos  int
}

// NewSliceIterator 创建内存迭代器
func NewSliceIterator(docs []*row.Document) *SliceIterator {
	return &SliceIterator{docs: docs}
}

func (it *SliceIterator) Next(ctx context.Context) (*row.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.docs) {
		return nil, io.EOF
	}
	doc := it.docs[it.pos]
	it.pos++
	return doc, nil
}

func (it *SliceIterator) Close(ctx context.Context) error {
	it.pos = len(it.docs)
	return nil
}
