package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient(Config{
		Endpoint:       "localhost:9000",
		AccessKey:      "testkey",
		SecretKey:      "testsecret",
		Bucket:         "reports",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient(Config{})
	assert.Error(t, err)
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantHost   string
		wantSecure bool
	}{
		{"Bare", Config{Endpoint: "localhost:9000"}, "localhost:9000", false},
		{"BareWithSSL", Config{Endpoint: "s3.example.com", UseSSL: true}, "s3.example.com", true},
		{"HTTP", Config{Endpoint: "http://minio:9000", UseSSL: true}, "minio:9000", false},
		{"HTTPS", Config{Endpoint: "https://s3.amazonaws.com/"}, "s3.amazonaws.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, secure := splitEndpoint(tt.cfg)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}

func TestNewTransport(t *testing.T) {
	tr := newTransport(3 * time.Second)
	assert.Equal(t, 3*time.Second, tr.TLSHandshakeTimeout)
	assert.Equal(t, 3*time.Second, tr.ResponseHeaderTimeout)
	assert.NotNil(t, tr.DialContext)
}
