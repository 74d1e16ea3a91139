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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lscgzwd/tigerfdw/config"
	"github.com/lscgzwd/tigerfdw/logger"
)

// options 全局命令行参数
type options struct {
	configPath string
	logLevel   string
	dataDir    string

	cfg *config.GlobalConfig
}

func (o *options) bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "Configuration file path (auto-detected when empty)")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error, silent")
	flags.StringVar(&o.dataDir, "data-dir", "", "Data directory path")
}

// load 加载配置
// 配置优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func (o *options) load() error {
	path := o.configPath
	if path == "" {
		path = autoDetectConfig()
	} else if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		if !isValidLogLevel(o.logLevel) {
			return fmt.Errorf("invalid log level %q", o.logLevel)
		}
		cfg.Log.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	o.cfg = cfg
	if path != "" {
		logger.Debug("Configuration loaded from %s: datadir=%s", path, cfg.DataDir)
	}
	return nil
}

// autoDetectConfig 自动检测配置文件
func autoDetectConfig() string {
	homeDir, _ := os.UserHomeDir()
	paths := []string{
		"tigerfdw.yaml",
		"tigerfdw.yml",
		filepath.Join(".", "config", "tigerfdw.yaml"),
		filepath.Join(homeDir, ".tigerfdw", "config.yaml"),
		filepath.Join("/etc", "tigerfdw", "config.yaml"),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// isValidLogLevel 验证日志级别
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error", "silent":
		return true
	}
	return false
}
