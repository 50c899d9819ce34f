package monitor

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/moneymanager/pkg/config"
)

func newInfluxServer(t *testing.T, queries *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		atomic.AddInt32(queries, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"statement_id": 0}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenWriter(t *testing.T) {
	var queries int32
	srv := newInfluxServer(t, &queries)

	tests := []struct {
		name       string
		secrets    config.InfluxSecrets
		database   string
		wantWriter bool
		wantQuery  int32
	}{
		{name: "no endpoint", database: "moneymanager"},
		{name: "no database", secrets: config.InfluxSecrets{InfluxEndpoint: srv.URL}},
		{name: "endpoint and database", secrets: config.InfluxSecrets{InfluxEndpoint: srv.URL}, database: "moneymanager", wantWriter: true, wantQuery: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic.StoreInt32(&queries, 0)

			writer, closeWriter, err := OpenWriter(tt.secrets, tt.database)
			require.NoError(t, err)
			require.NotNil(t, closeWriter)
			assert.Equal(t, tt.wantWriter, writer != nil)
			assert.Equal(t, tt.wantQuery, atomic.LoadInt32(&queries))
			assert.NoError(t, closeWriter())
		})
	}
}

func TestOpenWriterRejectsBadEndpoint(t *testing.T) {
	writer, closeWriter, err := OpenWriter(config.InfluxSecrets{InfluxEndpoint: "://nope"}, "moneymanager")
	assert.Error(t, err)
	assert.Nil(t, writer)
	assert.NoError(t, closeWriter())
}
