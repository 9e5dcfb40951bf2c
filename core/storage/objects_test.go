package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"asset-sync/core/storage"
	"asset-sync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("Exists", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "reports").Return(true, nil)
		require.NoError(t, storage.EnsureBucket(ctx, m, "reports", ""))
		m.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Creates", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "reports").Return(false, nil)
		m.On("MakeBucket", ctx, "reports", minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil)
		require.NoError(t, storage.EnsureBucket(ctx, m, "reports", "eu-west-1"))
		m.AssertExpectations(t)
	})

	t.Run("CheckFails", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("BucketExists", ctx, "reports").Return(false, errors.New("denied"))
		assert.ErrorContains(t, storage.EnsureBucket(ctx, m, "reports", ""), "denied")
	})
}

func TestPutJSON(t *testing.T) {
	ctx := context.Background()
	m := new(mocks.Client)

	var body []byte
	m.On("PutObject", ctx, "reports", "a/b.json", mock.Anything, mock.AnythingOfType("int64"), mock.MatchedBy(func(o minio.PutObjectOptions) bool {
		return o.ContentType == "application/json"
	})).Run(func(args mock.Arguments) {
		body, _ = io.ReadAll(args.Get(3).(io.Reader))
	}).Return(minio.UploadInfo{}, nil)

	require.NoError(t, storage.PutJSON(ctx, m, "reports", "a/b.json", map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n": 1}`, string(body))

	m2 := new(mocks.Client)
	m2.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("timeout"))
	assert.ErrorContains(t, storage.PutJSON(ctx, m2, "reports", "a/b.json", 1), "failed to upload a/b.json")
}

func TestGetJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("Decodes", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", ctx, "reports", "k", mock.Anything).
			Return(io.NopCloser(bytes.NewBufferString(`{"n": 2}`)), nil)

		var out map[string]int
		require.NoError(t, storage.GetJSON(ctx, m, "reports", "k", &out))
		assert.Equal(t, 2, out["n"])
	})

	t.Run("Missing", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", ctx, "reports", "k", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

		var out map[string]int
		err := storage.GetJSON(ctx, m, "reports", "k", &out)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("Corrupt", func(t *testing.T) {
		m := new(mocks.Client)
		m.On("GetObject", ctx, "reports", "k", mock.Anything).
			Return(io.NopCloser(bytes.NewBufferString(`{`)), nil)

		var out map[string]int
		err := storage.GetJSON(ctx, m, "reports", "k", &out)
		assert.Error(t, err)
		assert.False(t, storage.IsNotFound(err))
	})
}

func TestListAndRemoveKeys(t *testing.T) {
	ctx := context.Background()
	m := new(mocks.Client)

	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "r/1.json"}
	ch <- minio.ObjectInfo{Key: "r/2.json"}
	close(ch)
	m.On("ListObjects", ctx, "reports", minio.ListObjectsOptions{Prefix: "r/", Recursive: true}).Return((<-chan minio.ObjectInfo)(ch))

	keys, err := storage.ListKeys(ctx, m, "reports", "r/")
	require.NoError(t, err)
	assert.Equal(t, []string{"r/1.json", "r/2.json"}, keys)

	errCh := make(chan minio.RemoveObjectError, 1)
	errCh <- minio.RemoveObjectError{ObjectName: "r/2.json", Err: errors.New("locked")}
	close(errCh)
	m.On("RemoveObjects", ctx, "reports", mock.Anything, minio.RemoveObjectsOptions{}).Return((<-chan minio.RemoveObjectError)(errCh))

	err = storage.RemoveKeys(ctx, m, "reports", keys)
	assert.ErrorContains(t, err, "failed to remove r/2.json: locked")
	assert.NoError(t, storage.RemoveKeys(ctx, m, "reports", nil))
}
