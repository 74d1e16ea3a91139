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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lscgzwd/tigerfdw/backend"
	"github.com/lscgzwd/tigerfdw/catalog"
	wrapper "github.com/lscgzwd/tigerfdw/fdw"
	"github.com/lscgzwd/tigerfdw/logger"
	"github.com/lscgzwd/tigerfdw/protocols/fdw"
)

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           Name,
		Short:         "Elasticsearch foreign data gateway",
		Long:          "tigerfdw translates relational predicates into Elasticsearch queries and streams matching documents back as rows.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return opts.load()
		},
	}
	opts.bind(root)

	root.AddCommand(
		newServeCmd(opts),
		newExplainCmd(opts),
		newCatalogCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", Name, Version)
		},
	}
}

// openStore 打开目录存储，配置了表定义文件时先导入
func openStore(opts *options) (catalog.Store, error) {
	store, err := catalog.NewStore(opts.cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if path := opts.cfg.Catalog.Path; path != "" {
		tables, err := catalog.LoadYAML(path)
		if err != nil {
			store.Close()
			return nil, err
		}
		n, err := catalog.Import(store, tables)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("Imported %d table(s) from %s", n, path)
	}
	return store, nil
}

func newServeCmd(opts *options) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if host != "" {
				cfg.Gateway.ServerConfig.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Gateway.ServerConfig.Port = port
			}

			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			client, err := backend.NewClient(cfg.Elasticsearch)
			if err != nil {
				return err
			}

			srv, err := fdw.NewServer(wrapper.New(store, client), cfg.Gateway)
			if err != nil {
				return err
			}

			logger.Info("Starting %s v%s", Name, Version)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s starting\n", Name, Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Gateway: %s\n", srv.Address())
			fmt.Fprintf(cmd.OutOrStdout(), "Elasticsearch: %s\n", strings.Join(cfg.Elasticsearch.URLs, ","))
			return runWithGracefulShutdown(srv)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Gateway listen host")
	cmd.Flags().IntVar(&port, "port", 0, "Gateway listen port")
	return cmd
}

// runWithGracefulShutdown 启动服务器，收到 SIGINT/SIGTERM 后优雅关闭
func runWithGracefulShutdown(srv *fdw.FDWServer) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("Received %s, shutting down gateway...", sig)
	}

	if err := srv.Stop(); err != nil {
		logger.Error("Gateway forced to shutdown: %v", err)
		return err
	}
	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case <-time.After(5 * time.Second):
	}
	logger.Info("Gateway exited")
	return nil
}

func newExplainCmd(opts *options) *cobra.Command {
	var (
		table   string
		request string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the Elasticsearch query compiled for a request without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(cmd.InOrStdin(), request)
			if err != nil {
				return err
			}

			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			exp, err := wrapper.New(store, nil).Explain(table, req.Quals, req.Columns)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(exp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Foreign table name")
	cmd.Flags().StringVar(&request, "request", "-", "Request file (JSON or .msgpack), - for stdin")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

// readRequest 读取请求文件，扩展名为 .msgpack / .mp 时按 MessagePack 解析
func readRequest(stdin io.Reader, path string) (*fdw.QueryRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return fdw.ParseRequest(data, ext == ".msgpack" || ext == ".mp")
}

func newCatalogCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage foreign table definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import table definitions into the catalog store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Catalog.Store == catalog.StoreMemory {
				return errors.New("catalog import needs a persistent store (catalog.store: bolt)")
			}
			tables, err := catalog.LoadYAML(args[0])
			if err != nil {
				return err
			}
			store, err := catalog.NewStore(opts.cfg.StoreConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := catalog.Import(store, tables)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d table(s) into %s\n", n, opts.cfg.Catalog.BoltFile)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List table definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			tables, err := store.ListTables()
			if err != nil {
				return err
			}
			return printTables(cmd.OutOrStdout(), tables)
		},
	})
	return cmd
}

func printTables(w io.Writer, tables []*catalog.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tINDICES\tCOLUMNS\tLOG LEVEL")
	for _, t := range tables {
		names := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			names = append(names, c.Name)
		}
		level := t.LogLevel
		if level == "" {
			level = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, strings.Join(t.Indices, ","), strings.Join(names, ","), level)
	}
	return tw.Flush()
}
