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
	"fmt"
	"sort"
	"sync"
)

// Store 表定义存储接口
type Store interface {
	SaveTable(table *Table) error
	GetTable(name string) (*Table, error)
	DeleteTable(name string) error
	ListTables() ([]*Table, error)
	Close() error
}

// 存储类型
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// StoreConfig 存储配置
type StoreConfig struct {
	// 存储类型：memory, bolt
	StorageType string
	// bolt 数据库文件路径
	FilePath string
}

// NewStore 按配置创建存储实例
func NewStore(config *StoreConfig) (Store, error) {
	if config == nil {
		config = &StoreConfig{StorageType: StoreMemory}
	}

	switch config.StorageType {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreBolt:
		return OpenBoltStore(config.FilePath)
	default:
		return nil, &UnsupportedStorageTypeError{Type: config.StorageType}
	}
}

// UnsupportedStorageTypeError 不支持的存储类型错误
type UnsupportedStorageTypeError struct {
	Type string
}

func (e *UnsupportedStorageTypeError) Error() string {
	return "unsupported storage type: " + e.Type
}

// MemoryStore 基于内存的表定义存储
type MemoryStore struct {
	tables map[string]*Table
	mu     sync.RWMutex
}

// NewMemoryStore 创建基于内存的存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table)}
}

// SaveTable 保存表定义，同名覆盖
func (ms *MemoryStore) SaveTable(table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	copied := *table
	ms.tables[table.Name] = &copied
	return nil
}

// GetTable 获取表定义
func (ms *MemoryStore) GetTable(name string) (*Table, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if table, exists := ms.tables[name]; exists {
		copied := *table
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}

// DeleteTable 删除表定义
func (ms *MemoryStore) DeleteTable(name string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tables[name]; !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	delete(ms.tables, name)
	return nil
}

// ListTables 按名称排序列出全部表定义
func (ms *MemoryStore) ListTables() ([]*Table, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]*Table, 0, len(ms.tables))
	for _, table := range ms.tables {
		copied := *table
		result = append(result, &copied)
	}
	sortTables(result)
	return result, nil
}

// Close 关闭存储
func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.tables = make(map[string]*Table)
	return nil
}

func sortTables(tables []*Table) {
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
}
