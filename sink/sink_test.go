package sink

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"BlurServer/ndarray"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSink_Publish(t *testing.T) {
	var got ndarray.Message
	var port string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		port = r.Header.Get("X-Port-Name")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f, err := ndarray.FromValues([]int{2, 2}, ndarray.UInt16, []float64{1, 2, 3, 65535})
	require.NoError(t, err)
	f.UniqueID = 11

	require.NoError(t, New(srv.URL, "BLUR1").Publish(f))
	assert.Equal(t, "BLUR1", port)
	assert.Equal(t, int64(11), got.UniqueID)
	assert.Equal(t, "UInt16", got.DataType)

	back, err := ndarray.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, f.Data, back.Data)
}

func TestHTTPSink_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "full", http.StatusServiceUnavailable)
	}))
	f, err := ndarray.FromValues([]int{1}, ndarray.UInt8, []float64{1})
	require.NoError(t, err)

	err = New(srv.URL, "BLUR1").Publish(f)
	assert.ErrorContains(t, err, "503")

	srv.Close()
	assert.Error(t, New(srv.URL, "BLUR1").Publish(f))
}
