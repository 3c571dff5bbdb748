// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmapfs/mmapfs"
	"github.com/mmapfs/mmapfs/clock"
	"github.com/mmapfs/mmapfs/common"
	"github.com/mmapfs/mmapfs/internal/logger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// openFS builds a logger and a metrics handle from conf, opens the
// backing store, and returns the FS alongside a single shutdown function
// that flushes the logger and the metrics provider, in that order.
func openFS() (*mmapfs.FS, common.ShutdownFn, error) {
	logShutdown, err := logger.Init(conf.Logging, clock.RealClock{})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	var metrics common.MetricHandle = common.NewNoopMetrics()
	metricsShutdown := common.ShutdownFn(func(context.Context) error { return nil })
	if conf.Metrics.Enabled {
		_, ms, err := common.SetupPrometheusMetrics()
		if err != nil {
			logShutdown(context.Background())
			return nil, nil, fmt.Errorf("initializing metrics: %w", err)
		}
		m, err := common.NewOTelMetrics()
		if err != nil {
			logShutdown(context.Background())
			return nil, nil, fmt.Errorf("initializing metrics: %w", err)
		}
		metrics = m
		metricsShutdown = ms
	}

	fs, err := mmapfs.Open(string(conf.FileSystem.StorePath), mmapfs.WithMetrics(metrics))
	if err != nil {
		logShutdown(context.Background())
		metricsShutdown(context.Background())
		return nil, nil, err
	}

	shutdown := common.JoinShutdownFunc(logShutdown, metricsShutdown)
	return fs, shutdown, nil
}

func withFS(fn func(ctx context.Context, fs *mmapfs.FS, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		fs, shutdown, err := openFS()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		runErr := fn(ctx, fs, args)
		closeErr := fs.Close(ctx)
		shutdownErr := shutdown(ctx)
		return errors.Join(runErr, closeErr, shutdownErr)
	}
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backing store if it does not already exist",
	Args:  cobra.NoArgs,
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		root, err := fs.RootDir(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("store ready, root directory at offset %d\n", root)
		return nil
	}),
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory at path",
	Args:  cobra.ExactArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		parentPath, name := splitPath(args[0])
		parent, err := resolveFrom(ctx, fs, parentPath)
		if err != nil {
			return err
		}
		_, err = fs.CreateDir(ctx, parent, name)
		return err
	}),
}

var touchCmd = &cobra.Command{
	Use:   "touch <path>",
	Short: "Create an empty file at path",
	Args:  cobra.ExactArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		parentPath, name := splitPath(args[0])
		parent, err := resolveFrom(ctx, fs, parentPath)
		if err != nil {
			return err
		}
		_, err = fs.CreateFile(ctx, parent, name)
		return err
	}),
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory's children",
	Args:  cobra.MaximumNArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		dir, err := resolveFrom(ctx, fs, path)
		if err != nil {
			return err
		}
		children, err := fs.IterChildren(ctx, dir)
		if err != nil {
			return err
		}
		for _, c := range children {
			kind := "file"
			if c.Kind == mmapfs.NodeTypeDir {
				kind = "dir"
			}
			fmt.Printf("%s\t%s\n", kind, c.Name)
		}
		return nil
	}),
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		off, err := resolveFrom(ctx, fs, args[0])
		if err != nil {
			return err
		}
		fd, err := fs.OpenFile(ctx, off)
		if err != nil {
			return err
		}
		defer fs.CloseFile(ctx, fd)

		buf := make([]byte, fs.Size(off))
		if _, err := fs.Read(ctx, fd, buf); err != nil {
			return err
		}
		_, err = fmt.Print(string(buf))
		return err
	}),
}

var writeText string

var writeCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Overwrite a file's contents with --text",
	Args:  cobra.ExactArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		off, err := resolveFrom(ctx, fs, args[0])
		if err != nil {
			return err
		}
		fd, err := fs.OpenFile(ctx, off)
		if err != nil {
			return err
		}
		defer fs.CloseFile(ctx, fd)

		if err := fs.Seek(ctx, fd, 0, mmapfs.SeekSet); err != nil {
			return err
		}
		_, err = fs.Write(ctx, fd, []byte(writeText))
		return err
	}),
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file or directory (recursively)",
	Args:  cobra.ExactArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		off, err := resolveFrom(ctx, fs, args[0])
		if err != nil {
			return err
		}
		return fs.Delete(ctx, off)
	}),
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Print the offset a path resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: withFS(func(ctx context.Context, fs *mmapfs.FS, args []string) error {
		off, err := resolveFrom(ctx, fs, args[0])
		if err != nil {
			return err
		}
		fmt.Println(uint64(off))
		return nil
	}),
}

var dumpConfigCmd = &cobra.Command{
	Use:   "dump-config <output-file>",
	Short: "Write the effective configuration as YAML to output-file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(&conf)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		return common.WriteFile(args[0], string(out))
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeText, "text", "", "Text to write into the file")
}

// resolveFrom resolves path against fs's root directory.
func resolveFrom(ctx context.Context, fs *mmapfs.FS, path string) (mmapfs.Offset, error) {
	root, err := fs.RootDir(ctx)
	if err != nil {
		return 0, err
	}
	if path == "" || path == "." || path == "/" {
		return root, nil
	}
	return fs.Resolve(ctx, root, path)
}

// splitPath splits path into its parent directory path and final
// component, e.g. "a/b/c" -> ("a/b", "c").
func splitPath(path string) (string, string) {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
