// MIT License
//
// Copyright (c) 2023-2026 PVArchive Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDescriptor = `
- identity: appliance0
  cluster_inetport: appliance0.example.org:16670
  mgmt_url: http://appliance0.example.org:17665/mgmt/bpl
  engine_url: http://appliance0.example.org:17665/engine/bpl
  etl_url: http://appliance0.example.org:17665/etl/bpl
  retrieval_url: http://appliance0.example.org:17665/retrieval/bpl
  data_retrieval_url: http://appliance0.example.org:17665/retrieval
- identity: appliance1
  cluster_inetport: appliance1.example.org:16670
  mgmt_url: http://appliance1.example.org:17665/mgmt/bpl
  engine_url: http://appliance1.example.org:17665/engine/bpl
  etl_url: http://appliance1.example.org:17665/etl/bpl
  retrieval_url: http://appliance1.example.org:17665/retrieval/bpl
  data_retrieval_url: http://appliance1.example.org:17665/retrieval
`

func TestParseAppliances(t *testing.T) {
	t.Run("With valid descriptor", func(t *testing.T) {
		members, err := ParseAppliances([]byte(validDescriptor))
		require.NoError(t, err)
		require.Len(t, members, 2)
		// definition order is preserved
		assert.Equal(t, "appliance0", members[0].Identity)
		assert.Equal(t, "appliance1", members[1].Identity)
		assert.Equal(t, "appliance1.example.org:16670", members[1].ClusterInetPort)
	})

	t.Run("With empty descriptor", func(t *testing.T) {
		_, err := ParseAppliances([]byte(""))
		assert.ErrorIs(t, err, ErrNoMembers)
	})

	t.Run("With missing fields", func(t *testing.T) {
		_, err := ParseAppliances([]byte(`
- identity: appliance0
  cluster_inetport: appliance0.example.org:16670
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "mgmt_url is required")
		assert.ErrorContains(t, err, "data_retrieval_url is required")
	})

	t.Run("With missing identity", func(t *testing.T) {
		_, err := ParseAppliances([]byte(`
- cluster_inetport: appliance0.example.org:16670
  mgmt_url: http://appliance0.example.org:17665/mgmt/bpl
  engine_url: http://appliance0.example.org:17665/engine/bpl
  etl_url: http://appliance0.example.org:17665/etl/bpl
  retrieval_url: http://appliance0.example.org:17665/retrieval/bpl
  data_retrieval_url: http://appliance0.example.org:17665/retrieval
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "identity is required")
	})

	t.Run("With malformed identity", func(t *testing.T) {
		_, err := ParseAppliances([]byte(`
- identity: "appliance 0"
  cluster_inetport: appliance0.example.org:16670
  mgmt_url: http://appliance0.example.org:17665/mgmt/bpl
  engine_url: http://appliance0.example.org:17665/engine/bpl
  etl_url: http://appliance0.example.org:17665/etl/bpl
  retrieval_url: http://appliance0.example.org:17665/retrieval/bpl
  data_retrieval_url: http://appliance0.example.org:17665/retrieval
`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "identity must match")
	})

	t.Run("With duplicate identity", func(t *testing.T) {
		duplicated := validDescriptor + `
- identity: appliance0
  cluster_inetport: appliance2.example.org:16670
  mgmt_url: http://appliance2.example.org:17665/mgmt/bpl
  engine_url: http://appliance2.example.org:17665/engine/bpl
  etl_url: http://appliance2.example.org:17665/etl/bpl
  retrieval_url: http://appliance2.example.org:17665/retrieval/bpl
  data_retrieval_url: http://appliance2.example.org:17665/retrieval
`
		_, err := ParseAppliances([]byte(duplicated))
		require.Error(t, err)
		assert.ErrorContains(t, err, "duplicate identity")
	})

	t.Run("With duplicate inet port", func(t *testing.T) {
		duplicated := validDescriptor + `
- identity: appliance2
  cluster_inetport: appliance0.example.org:16670
  mgmt_url: http://appliance2.example.org:17665/mgmt/bpl
  engine_url: http://appliance2.example.org:17665/engine/bpl
  etl_url: http://appliance2.example.org:17665/etl/bpl
  retrieval_url: http://appliance2.example.org:17665/retrieval/bpl
  data_retrieval_url: http://appliance2.example.org:17665/retrieval
`
		_, err := ParseAppliances([]byte(duplicated))
		require.Error(t, err)
		assert.ErrorContains(t, err, "duplicate cluster_inetport")
	})

	t.Run("With malformed YAML", func(t *testing.T) {
		_, err := ParseAppliances([]byte("identity: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadAppliances(t *testing.T) {
	t.Run("With descriptor file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "appliances.yaml")
		require.NoError(t, os.WriteFile(path, []byte(validDescriptor), 0o600))

		members, err := LoadAppliances(path)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, "appliance0", members[0].Identity)
	})

	t.Run("With missing file", func(t *testing.T) {
		_, err := LoadAppliances(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
