// Copyright 2024 Google LLC
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

// Package mmapfs is the Core API: a single-file, memory-mapped,
// hierarchical filesystem. It wires the block/node allocators in
// internal/store, the directory tree in internal/namespace, and the
// open-file-handle table in internal/handle into one instrumented facade,
// the way a production filesystem wires its layers into one mount-visible
// surface.
package mmapfs

import (
	"context"

	"github.com/mmapfs/mmapfs/clock"
	"github.com/mmapfs/mmapfs/common"
	"github.com/mmapfs/mmapfs/internal/handle"
	"github.com/mmapfs/mmapfs/internal/logger"
	"github.com/mmapfs/mmapfs/internal/namespace"
	"github.com/mmapfs/mmapfs/internal/store"
)

// Re-exported so callers never need to import internal/store or
// internal/handle directly.
type (
	// Offset identifies an inode; the zero value never names a live file
	// or directory other than the reserved root record.
	Offset = store.Offset
	// NodeType distinguishes a directory inode from a file inode.
	NodeType = store.NodeType
)

// NodeTypeFile and NodeTypeDir classify the inode returned by Kind.
const (
	NodeTypeFile = store.NodeTypeFile
	NodeTypeDir  = store.NodeTypeDir
)

// Whence values for Seek.
const (
	SeekSet = handle.SeekSet
	SeekCur = handle.SeekCur
	SeekEnd = handle.SeekEnd
)

// Sentinel errors, forwarded from internal/store so callers can use
// errors.Is without importing an internal package.
var (
	ErrNotFound    = store.ErrNotFound
	ErrNotAFile    = store.ErrNotAFile
	ErrNotADir     = store.ErrNotADir
	ErrInvalidName = store.ErrInvalidName
	ErrTooManyOpen = store.ErrTooManyOpen
	ErrBadHandle   = store.ErrBadHandle
	ErrIsRoot      = store.ErrIsRoot
	ErrInvalidArg  = store.ErrInvalidArg
	ErrAlreadyExists = store.ErrAlreadyExists
)

// FS is an open, mounted filesystem: one backing store, its directory
// engine, and its table of open file handles.
type FS struct {
	store   *store.Store
	ns      *namespace.Engine
	handles *handle.Table
	metrics common.MetricHandle
	clock   clock.Clock
}

// Option configures Open.
type Option func(*FS)

// WithMetrics instruments every Core API call through h instead of the
// default no-op handle.
func WithMetrics(h common.MetricHandle) Option {
	return func(fs *FS) { fs.metrics = h }
}

// WithClock overrides the clock used to time Core API calls, for tests
// that need deterministic latencies.
func WithClock(c clock.Clock) Option {
	return func(fs *FS) { fs.clock = c }
}

// Open mounts the backing store at path, creating it if absent, and
// returns a ready-to-use FS. The caller must Close it.
func Open(path string, opts ...Option) (*FS, error) {
	fs := &FS{
		metrics: common.NewNoopMetrics(),
		clock:   clock.RealClock{},
	}
	for _, opt := range opts {
		opt(fs)
	}

	s, err := instrument(fs, context.Background(), common.OpOpenStore, func() (*store.Store, error) {
		return store.Open(path, store.WithMetrics(fs.metrics))
	})
	if err != nil {
		return nil, err
	}

	fs.store = s
	fs.ns = namespace.New(s)
	fs.handles = handle.New(s)
	return fs, nil
}

func attrsFor(op string) []common.MetricAttr {
	return []common.MetricAttr{{Key: common.FSOpKey, Value: op}}
}

// instrument runs fn, recording its latency and error/success counts under
// op, then returns fn's result unchanged.
func instrument[T any](fs *FS, ctx context.Context, op string, fn func() (T, error)) (T, error) {
	attrs := attrsFor(op)
	start := fs.clock.Now()
	result, err := fn()
	fs.metrics.OpsCount(ctx, 1, attrs)
	fs.metrics.OpsLatency(ctx, fs.clock.Now().Sub(start), attrs)
	if err != nil {
		fs.metrics.OpsErrorCount(ctx, 1, attrs)
		logger.Debugf("%s failed: %v", op, err)
	} else {
		logger.Tracef("%s ok", op)
	}
	return result, err
}

// Close flushes and unmaps the backing store. The FS must not be used
// afterward.
func (fs *FS) Close(ctx context.Context) error {
	_, err := instrument(fs, ctx, common.OpCloseStore, func() (struct{}, error) {
		return struct{}{}, fs.store.Close()
	})
	return err
}

// Flush synchronizes the mapping back to the backing file without
// unmapping it.
func (fs *FS) Flush() error {
	return fs.store.Flush()
}

// RootDir returns the offset of the root directory.
func (fs *FS) RootDir(ctx context.Context) (Offset, error) {
	return instrument(fs, ctx, common.OpRootDir, func() (Offset, error) {
		return fs.ns.RootDir(), nil
	})
}

// CreateDir creates an empty directory named name under parent.
func (fs *FS) CreateDir(ctx context.Context, parent Offset, name string) (Offset, error) {
	return instrument(fs, ctx, common.OpCreateDir, func() (Offset, error) {
		return fs.ns.CreateDir(parent, name)
	})
}

// CreateFile creates an empty file named name under parent.
func (fs *FS) CreateFile(ctx context.Context, parent Offset, name string) (Offset, error) {
	return instrument(fs, ctx, common.OpCreateFile, func() (Offset, error) {
		return fs.ns.CreateFile(parent, name)
	})
}

// Delete removes the inode at off, recursively if it is a directory.
func (fs *FS) Delete(ctx context.Context, off Offset) error {
	_, err := instrument(fs, ctx, common.OpDelete, func() (struct{}, error) {
		return struct{}{}, fs.ns.Delete(off)
	})
	return err
}

// Resolve walks a '/'-separated path starting at from.
func (fs *FS) Resolve(ctx context.Context, from Offset, path string) (Offset, error) {
	return instrument(fs, ctx, common.OpResolve, func() (Offset, error) {
		return fs.ns.Resolve(from, path)
	})
}

// Name returns the inode's name.
func (fs *FS) Name(off Offset) string { return fs.ns.Name(off) }

// Kind returns the inode's type.
func (fs *FS) Kind(off Offset) NodeType { return fs.ns.Kind(off) }

// Size returns a file inode's declared byte length.
func (fs *FS) Size(off Offset) uint64 { return fs.ns.Size(off) }

// ChildEntry describes one directory entry returned by IterChildren.
type ChildEntry struct {
	Offset Offset
	Name   string
	Kind   NodeType
}

// IterChildren returns dir's children as a slice, most recently created
// first. dir must be a directory.
func (fs *FS) IterChildren(ctx context.Context, dir Offset) ([]ChildEntry, error) {
	return instrument(fs, ctx, common.OpIterChildren, func() ([]ChildEntry, error) {
		it, err := fs.ns.IterChildren(dir)
		if err != nil {
			return nil, err
		}
		var entries []ChildEntry
		for {
			off, ok := it.Next()
			if !ok {
				break
			}
			entries = append(entries, ChildEntry{Offset: off, Name: fs.ns.Name(off), Kind: fs.ns.Kind(off)})
		}
		return entries, nil
	})
}

// OpenFile opens file for reading and writing, returning a handle number.
func (fs *FS) OpenFile(ctx context.Context, file Offset) (int, error) {
	return instrument(fs, ctx, common.OpOpenFile, func() (int, error) {
		return fs.handles.Open(file)
	})
}

// CloseFile releases fd.
func (fs *FS) CloseFile(ctx context.Context, fd int) error {
	_, err := instrument(fs, ctx, common.OpCloseFile, func() (struct{}, error) {
		return struct{}{}, fs.handles.Close(fd)
	})
	return err
}

// Read fills buf from fd's current cursor, advancing it.
func (fs *FS) Read(ctx context.Context, fd int, buf []byte) (int, error) {
	return instrument(fs, ctx, common.OpRead, func() (int, error) {
		return fs.handles.Read(fd, buf)
	})
}

// Write copies buf into fd's file at the current cursor, advancing it.
func (fs *FS) Write(ctx context.Context, fd int, buf []byte) (int, error) {
	return instrument(fs, ctx, common.OpWrite, func() (int, error) {
		return fs.handles.Write(fd, buf)
	})
}

// Seek repositions fd's cursor.
func (fs *FS) Seek(ctx context.Context, fd int, offset int64, whence int) error {
	_, err := instrument(fs, ctx, common.OpSeek, func() (struct{}, error) {
		return struct{}{}, fs.handles.Seek(fd, offset, whence)
	})
	return err
}
