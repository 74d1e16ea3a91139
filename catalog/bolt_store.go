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

package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var tablesBucket = []byte("tables")

// BoltStore 基于 bbolt 的持久化存储，每张表一条 JSON 记录
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore 打开（不存在则创建）bolt 数据库
func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty for bolt store")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// SaveTable 保存表定义
func (bs *BoltStore) SaveTable(table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal table %s: %w", table.Name, err)
	}
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tablesBucket).Put([]byte(table.Name), data)
	})
}

// GetTable 获取表定义
func (bs *BoltStore) GetTable(name string) (*Table, error) {
	var table *Table
	err := bs.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(tablesBucket).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		table = &Table{}
		return json.Unmarshal(data, table)
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// DeleteTable 删除表定义
func (bs *BoltStore) DeleteTable(name string) error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tablesBucket)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

// ListTables 按名称顺序列出全部表定义（bolt 的 key 天然有序）
func (bs *BoltStore) ListTables() ([]*Table, error) {
	var result []*Table
	err := bs.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tablesBucket).ForEach(func(k, v []byte) error {
			table := &Table{}
			if err := json.Unmarshal(v, table); err != nil {
				return fmt.Errorf("failed to decode table %s: %w", k, err)
			}
			result = append(result, table)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close 关闭数据库
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
