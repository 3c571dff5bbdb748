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

package cfg

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSeverityUnmarshalling(t *testing.T) {
	t.Parallel()
	tests := []struct {
		str      string
		expected LogSeverity
		wantErr  bool
	}{
		{
			str:      "TRACE",
			expected: "TRACE",
			wantErr:  false,
		},
		{
			str:      "info",
			expected: "INFO",
			wantErr:  false,
		},
		{
			str:      "debUG",
			expected: "DEBUG",
			wantErr:  false,
		},
		{
			str:      "waRniNg",
			expected: "WARNING",
			wantErr:  false,
		},
		{
			str:      "OFF",
			expected: "OFF",
			wantErr:  false,
		},
		{
			str:      "ERROR",
			expected: "ERROR",
			wantErr:  false,
		},
		{
			str:     "EMPEROR",
			wantErr: true,
		},
	}

	for idx, tc := range tests {
		tc := tc
		t.Run(fmt.Sprintf("log-severity-unmarshalling: %d", idx), func(t *testing.T) {
			t.Parallel()
			var l LogSeverity

			err := (&l).UnmarshalText([]byte(tc.str))

			if tc.wantErr {
				assert.Error(t, err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, tc.expected, l)
			}
		})
	}
}

func TestLogSeverityRank(t *testing.T) {
	t.Parallel()
	assert.Less(t, TraceLogSeverity.Rank(), DebugLogSeverity.Rank())
	assert.Less(t, DebugLogSeverity.Rank(), InfoLogSeverity.Rank())
	assert.Less(t, InfoLogSeverity.Rank(), WarningLogSeverity.Rank())
	assert.Less(t, WarningLogSeverity.Rank(), ErrorLogSeverity.Rank())
	assert.Less(t, ErrorLogSeverity.Rank(), OffLogSeverity.Rank())
	assert.Equal(t, -1, LogSeverity("EMPEROR").Rank())
}

func TestResolvedPathUnmarshalling(t *testing.T) {
	t.Parallel()
	h, err := os.UserHomeDir()
	require.NoError(t, err)
	tests := []struct {
		str      string
		expected ResolvedPath
	}{
		{
			str:      "~/test.txt",
			expected: ResolvedPath(path.Join(h, "test.txt")),
		},
		{
			str:      "/a/test.txt",
			expected: "/a/test.txt",
		},
		{
			str:      "",
			expected: "",
		},
	}

	for idx, tc := range tests {
		tc := tc
		t.Run(fmt.Sprintf("resolved-path-unmarshalling: %d", idx), func(t *testing.T) {
			t.Parallel()
			var p ResolvedPath

			err := (&p).UnmarshalText([]byte(tc.str))

			if assert.NoError(t, err) {
				assert.Equal(t, tc.expected, p)
			}
		})
	}
}
