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
	"os"

	"gopkg.in/yaml.v3"
)

// File 表定义文件格式
//
//	tables:
//	  - name: logs
//	    indices: [logs-2024]
//	    columns:
//	      - name: _id
//	      - name: host
//	        options: {es_field: host.name}
type File struct {
	Tables []*Table `yaml:"tables"`
}

// LoadYAML 读取并验证表定义文件
func LoadYAML(path string) ([]*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return ParseYAML(data)
}

// ParseYAML 解析表定义
func ParseYAML(data []byte) ([]*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Tables))
	for _, t := range f.Tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate table name: %s", t.Name)
		}
		seen[t.Name] = true
	}
	return f.Tables, nil
}

// Import 将表定义写入存储，返回写入的数量
func Import(store Store, tables []*Table) (int, error) {
	for i, t := range tables {
		if err := store.SaveTable(t); err != nil {
			return i, fmt.Errorf("failed to save table %s: %w", t.Name, err)
		}
	}
	return len(tables), nil
}
