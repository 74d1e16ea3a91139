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

// Package protocols 对外服务的公共接口
package protocols

// ProtocolServer 由命令行统一管理生命周期的服务器
// 目前只有外部表网关（fdw）实现它。
type ProtocolServer interface {
	// Start 监听并阻塞，正常关闭时返回 nil
	Start() error

	// Stop 优雅关闭，等待进行中的请求结束
	Stop() error

	// Name 服务名称，如 "fdw"
	Name() string

	// Address 监听地址；启动后为实际绑定的地址
	Address() string

	// IsRunning 是否正在运行
	IsRunning() bool
}
