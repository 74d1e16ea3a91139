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

package main

import (
	"fmt"

	"github.com/lscgzwd/tigerfdw/config"
	"github.com/lscgzwd/tigerfdw/logger"
)

// initLogger 初始化日志系统
func initLogger(cfg *config.GlobalConfig) error {
	if cfg.Log == nil {
		return logger.Init(logger.DefaultConfig())
	}

	logCfg := &logger.Config{
		Level:           logger.ParseLevel(cfg.Log.Level),
		Output:          cfg.Log.Output,
		Format:          cfg.Log.Format,
		EnableCaller:    cfg.Log.EnableCaller,
		EnableTimestamp: cfg.Log.EnableTimestamp,
		MaxSize:         cfg.Log.MaxSize,
		MaxBackups:      cfg.Log.MaxBackups,
		MaxAge:          cfg.Log.MaxAge,
		Compress:        cfg.Log.Compress,
	}

	if err := logger.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
