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

package mmapfs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type FSSuite struct {
	suite.Suite
	ctx  context.Context
	path string
	fs   *FS
}

func TestFSSuite(t *testing.T) {
	suite.Run(t, new(FSSuite))
}

func (s *FSSuite) SetupTest() {
	s.ctx = context.Background()
	s.path = filepath.Join(s.T().TempDir(), "store.img")
	fs, err := Open(s.path)
	require.NoError(s.T(), err)
	s.fs = fs
}

func (s *FSSuite) TearDownTest() {
	if s.fs != nil {
		_ = s.fs.Close(s.ctx)
	}
}

// S1: fresh store round-trip through close/reopen.
func (s *FSSuite) TestS1_FreshStoreWriteReadReopen() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)

	d, err := s.fs.CreateDir(s.ctx, root, "d")
	require.NoError(s.T(), err)
	f, err := s.fs.CreateFile(s.ctx, d, "f")
	require.NoError(s.T(), err)

	fd, err := s.fs.OpenFile(s.ctx, f)
	require.NoError(s.T(), err)
	n, err := s.fs.Write(s.ctx, fd, []byte("hello"))
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, n)
	require.NoError(s.T(), s.fs.Seek(s.ctx, fd, 0, SeekSet))
	buf := make([]byte, 5)
	n, err = s.fs.Read(s.ctx, fd, buf)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, n)
	require.Equal(s.T(), "hello", string(buf))
	require.NoError(s.T(), s.fs.CloseFile(s.ctx, fd))
	require.NoError(s.T(), s.fs.Close(s.ctx))

	reopened, err := Open(s.path)
	require.NoError(s.T(), err)
	defer reopened.Close(s.ctx)

	root2, err := reopened.RootDir(s.ctx)
	require.NoError(s.T(), err)
	off, err := reopened.Resolve(s.ctx, root2, "d/f")
	require.NoError(s.T(), err)

	fd2, err := reopened.OpenFile(s.ctx, off)
	require.NoError(s.T(), err)
	buf2 := make([]byte, 5)
	n, err = reopened.Read(s.ctx, fd2, buf2)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, n)
	require.Equal(s.T(), "hello", string(buf2))

	s.fs = nil // already closed above
}

// S2: a write spanning several data blocks reads back correctly in
// uneven-sized chunks.
func (s *FSSuite) TestS2_LargeWriteSpanningBlocks() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)
	f, err := s.fs.CreateFile(s.ctx, root, "big")
	require.NoError(s.T(), err)
	fd, err := s.fs.OpenFile(s.ctx, f)
	require.NoError(s.T(), err)

	const dataPerBlock = 4096 - 8 // must match internal/store.DataPerBlock
	total := 2*dataPerBlock + 7
	pattern := make([]byte, total)
	for i := range pattern {
		pattern[i] = byte(i % 251)
	}
	n, err := s.fs.Write(s.ctx, fd, pattern)
	require.NoError(s.T(), err)
	require.Equal(s.T(), total, n)

	require.NoError(s.T(), s.fs.Seek(s.ctx, fd, 0, SeekSet))
	chunk := dataPerBlock / 3
	out := make([]byte, 0, total)
	buf := make([]byte, chunk)
	for len(out) < total {
		n, err := s.fs.Read(s.ctx, fd, buf)
		require.NoError(s.T(), err)
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	require.Equal(s.T(), pattern, out)
}

// S3: deleting files and recreating the same number reuses free lists
// instead of growing the backing store.
func (s *FSSuite) TestS3_DeleteReclaimsSpace() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)

	var offs []Offset
	for i := 0; i < 100; i++ {
		off, err := s.fs.CreateFile(s.ctx, root, fmt.Sprintf("file-%d", i))
		require.NoError(s.T(), err)
		fd, err := s.fs.OpenFile(s.ctx, off)
		require.NoError(s.T(), err)
		_, err = s.fs.Write(s.ctx, fd, []byte{'x'})
		require.NoError(s.T(), err)
		require.NoError(s.T(), s.fs.CloseFile(s.ctx, fd))
		offs = append(offs, off)
	}
	l1 := s.fs.store.Size()

	for _, off := range offs {
		require.NoError(s.T(), s.fs.Delete(s.ctx, off))
	}
	for i := 0; i < 100; i++ {
		off, err := s.fs.CreateFile(s.ctx, root, fmt.Sprintf("again-%d", i))
		require.NoError(s.T(), err)
		fd, err := s.fs.OpenFile(s.ctx, off)
		require.NoError(s.T(), err)
		_, err = s.fs.Write(s.ctx, fd, []byte{'x'})
		require.NoError(s.T(), err)
		require.NoError(s.T(), s.fs.CloseFile(s.ctx, fd))
	}
	l2 := s.fs.store.Size()

	require.LessOrEqual(s.T(), l2, l1)
}

// S4: ".." at the root is the identity.
func (s *FSSuite) TestS4_DotDotAtRootIsIdentity() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)

	x, err := s.fs.CreateDir(s.ctx, root, "x")
	require.NoError(s.T(), err)

	got, err := s.fs.Resolve(s.ctx, root, "..")
	require.NoError(s.T(), err)
	require.Equal(s.T(), root, got)

	got, err = s.fs.Resolve(s.ctx, root, "../../x")
	require.NoError(s.T(), err)
	require.Equal(s.T(), x, got)
}

// S5: a duplicate create is rejected and leaves the parent unchanged.
func (s *FSSuite) TestS5_DuplicateCreateRejected() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)

	_, err = s.fs.CreateDir(s.ctx, root, "a")
	require.NoError(s.T(), err)

	_, err = s.fs.CreateDir(s.ctx, root, "a")
	require.Error(s.T(), err)
	require.True(s.T(), errors.Is(err, ErrAlreadyExists))

	children, err := s.fs.IterChildren(s.ctx, root)
	require.NoError(s.T(), err)
	require.Len(s.T(), children, 1)
}

// S6: the handle table is exhausted at FD_MAX and reuses the
// lowest-index freed slot.
func (s *FSSuite) TestS6_HandleTableExhaustion() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)
	f, err := s.fs.CreateFile(s.ctx, root, "f")
	require.NoError(s.T(), err)

	const fdMax = 1024
	fds := make([]int, 0, fdMax)
	for i := 0; i < fdMax; i++ {
		fd, err := s.fs.OpenFile(s.ctx, f)
		require.NoError(s.T(), err)
		fds = append(fds, fd)
	}

	_, err = s.fs.OpenFile(s.ctx, f)
	require.ErrorIs(s.T(), err, ErrTooManyOpen)

	require.NoError(s.T(), s.fs.CloseFile(s.ctx, fds[3]))
	fd, err := s.fs.OpenFile(s.ctx, f)
	require.NoError(s.T(), err)
	require.Equal(s.T(), fds[3], fd)
}

// Property 2 and 7: name uniqueness under a directory.
func (s *FSSuite) TestNameUniquenessAndSiblingUniquenessOnCreate() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.fs.CreateFile(s.ctx, root, name)
		require.NoError(s.T(), err)
	}

	children, err := s.fs.IterChildren(s.ctx, root)
	require.NoError(s.T(), err)
	seen := map[string]bool{}
	for _, c := range children {
		require.False(s.T(), seen[c.Name], "duplicate name %q", c.Name)
		seen[c.Name] = true
	}

	_, err = s.fs.CreateFile(s.ctx, root, "b")
	require.ErrorIs(s.T(), err, ErrAlreadyExists)
	after, err := s.fs.IterChildren(s.ctx, root)
	require.NoError(s.T(), err)
	require.Equal(s.T(), children, after, "a rejected create must leave the child list unchanged")
}

// Property 8: path resolution through ".." cancels out.
func (s *FSSuite) TestPathResolutionDotDotCancelsOut() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)
	a, err := s.fs.CreateDir(s.ctx, root, "a")
	require.NoError(s.T(), err)
	c, err := s.fs.CreateFile(s.ctx, a, "c")
	require.NoError(s.T(), err)
	_ = c

	viaDotDot, err := s.fs.Resolve(s.ctx, root, "a/b/../c")
	require.ErrorIs(s.T(), err, ErrNotFound)

	_, err = s.fs.CreateDir(s.ctx, a, "b")
	require.NoError(s.T(), err)

	viaDotDot, err = s.fs.Resolve(s.ctx, root, "a/b/../c")
	require.NoError(s.T(), err)
	direct, err := s.fs.Resolve(s.ctx, root, "a/c")
	require.NoError(s.T(), err)
	require.Equal(s.T(), direct, viaDotDot)
}

// Property 6: growth safety across many allocations that force repeated
// store growth.
func (s *FSSuite) TestGrowthPreservesExistingContent() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)

	type created struct {
		off     Offset
		name    string
		content []byte
	}
	var all []created
	for i := 0; i < 500; i++ {
		name := fmt.Sprintf("n-%d", i)
		off, err := s.fs.CreateFile(s.ctx, root, name)
		require.NoError(s.T(), err)
		content := []byte(fmt.Sprintf("content-%d", i))
		fd, err := s.fs.OpenFile(s.ctx, off)
		require.NoError(s.T(), err)
		_, err = s.fs.Write(s.ctx, fd, content)
		require.NoError(s.T(), err)
		require.NoError(s.T(), s.fs.CloseFile(s.ctx, fd))
		all = append(all, created{off, name, content})
	}

	for _, c := range all {
		require.Equal(s.T(), c.name, s.fs.Name(c.off))
		fd, err := s.fs.OpenFile(s.ctx, c.off)
		require.NoError(s.T(), err)
		buf := make([]byte, len(c.content))
		n, err := s.fs.Read(s.ctx, fd, buf)
		require.NoError(s.T(), err)
		require.Equal(s.T(), len(c.content), n)
		require.Equal(s.T(), c.content, buf)
		require.NoError(s.T(), s.fs.CloseFile(s.ctx, fd))
	}
}

func (s *FSSuite) TestDeleteRootDirRejected() {
	root, err := s.fs.RootDir(s.ctx)
	require.NoError(s.T(), err)
	require.ErrorIs(s.T(), s.fs.Delete(s.ctx, root), ErrIsRoot)
}
