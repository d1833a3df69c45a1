package s3

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "binlogs"

func testStore(t *testing.T, objects map[string]string, u string) *S3 {
	t.Helper()
	s3backend := s3mem.New()
	require.NoError(t, s3backend.CreateBucket(bucketName))
	for key, content := range objects {
		_, err := s3backend.PutObject(bucketName, key, map[string]string{}, bytes.NewReader([]byte(content)), int64(len(content)))
		require.NoError(t, err)
	}
	s3server := httptest.NewServer(gofakes3.New(s3backend).Server())
	t.Cleanup(s3server.Close)

	parsed, err := url.Parse(u)
	require.NoError(t, err)
	return New(*parsed,
		WithEndpoint(s3server.URL),
		WithRegion("us-east-1"),
		WithAccessKeyId("abcdefg"),
		WithSecretAccessKey("1234567"),
		WithPathStyle(),
	)
}

func TestReadDir(t *testing.T) {
	objects := map[string]string{
		"db1/mysql-bin.000001":     "one",
		"db1/mysql-bin.000002.gz":  "two",
		"db1/old/mysql-bin.000000": "zero",
		"db2/mysql-bin.000001":     "other",
	}
	logger := log.New()
	logger.Out = io.Discard

	tests := []struct {
		name     string
		url      string
		expected []string
	}{
		{"path without slash", "s3://" + bucketName + "/db1", []string{"mysql-bin.000001", "mysql-bin.000002.gz"}},
		{"path with slash", "s3://" + bucketName + "/db1/", []string{"mysql-bin.000001", "mysql-bin.000002.gz"}},
		{"nested", "s3://" + bucketName + "/db1/old", []string{"mysql-bin.000000"}},
		{"missing prefix", "s3://" + bucketName + "/db3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testStore(t, objects, tt.url)
			infos, err := store.ReadDir(context.Background(), "", log.NewEntry(logger))
			require.NoError(t, err)
			var names []string
			for _, info := range infos {
				names = append(names, info.Name())
				assert.False(t, info.IsDir())
			}
			sort.Strings(names)
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestPull(t *testing.T) {
	store := testStore(t, map[string]string{"db1/mysql-bin.000001": "binlog-content"}, "s3://"+bucketName+"/db1")
	assert.Equal(t, "s3", store.Protocol())
	assert.Equal(t, "s3://"+bucketName+"/db1", store.URL())

	target := filepath.Join(t.TempDir(), "mysql-bin.000001")
	n, err := store.Pull(context.Background(), "mysql-bin.000001", target, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len("binlog-content")), n)
	b, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "binlog-content", string(b))

	_, err = store.Pull(context.Background(), "mysql-bin.000009", filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestGetEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", getEndpoint("http://127.0.0.1:9000"))
	assert.Equal(t, "https://s3.example.com", getEndpoint("https://s3.example.com"))
}
