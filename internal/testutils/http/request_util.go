package testhttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guild/types"
)

// DoGet serves GET request with the handler and decodes JSON response body
// into "response" when it is not nil.
func DoGet(t *testing.T, handler http.Handler, url string, response any) *http.Response {
	t.Helper()
	rsp := serve(handler, httptest.NewRequest(http.MethodGet, url, nil))
	if response != nil {
		require.NoError(t, json.NewDecoder(rsp.Body).Decode(response), "decoding response of GET %s", url)
	}
	return rsp
}

// DoGetCBOR serves GET request with the handler and decodes CBOR response body
// into "response" when it is not nil.
func DoGetCBOR(t *testing.T, handler http.Handler, url string, response any) *http.Response {
	t.Helper()
	rsp := serve(handler, httptest.NewRequest(http.MethodGet, url, nil))
	if response != nil {
		require.NoError(t, types.Cbor.Decode(rsp.Body, response), "decoding response of GET %s", url)
	}
	return rsp
}

// DoPostCBOR sends "req" CBOR encoded to the handler and decodes CBOR response
// body into "response" when it is not nil.
func DoPostCBOR(t *testing.T, handler http.Handler, url string, req any, response any) *http.Response {
	t.Helper()
	body, err := types.Cbor.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/cbor")
	rsp := serve(handler, httpReq)
	if response != nil {
		require.NoError(t, types.Cbor.Decode(rsp.Body, response), "decoding response of POST %s", url)
	}
	return rsp
}

func serve(handler http.Handler, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Result()
}
