package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-chat-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverPanics(t *testing.T) {
	tcases := []struct {
		name  string
		value any
		log   string
	}{
		{name: "error value", value: errors.New("test panic"), log: "panic serving GET /rooms: test panic"},
		{name: "string value", value: "boom", log: "panic serving GET /rooms: boom"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			app := &GoChatApp{
				log: testutil.TestLogger(t),
			}
			app.log.SetOutput(buf)

			panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tc.value)
			})

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
			app.recoverPanics(panicHandler).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, "close", rr.Header().Get("Connection"))
			assert.Contains(t, buf.String(), tc.log)

			var body ApiError
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, http.StatusInternalServerError, body.StatusCode)
			assert.Equal(t, "internal server error", body.Message)
		})
	}
}

func TestRecoverPanics_noPanic(t *testing.T) {
	app := &GoChatApp{}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	app.recoverPanics(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}
