package api

import (
	"fmt"
	"net/http"
)

// recoverPanics turns a handler panic into a 500 and closes the connection.
// Websocket handlers have hijacked the connection by the time they could
// panic, so only the plain HTTP routes get a response body.
func (s *GoChatApp) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}

			err, ok := v.(error)
			if !ok {
				err = fmt.Errorf("%v", v)
			}
			s.log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, err)

			errResp := NewInternalServerError(err)
			w.Header().Set("Connection", "close")
			s.writeJson(w, errResp.StatusCode, errResp)
		}()

		next.ServeHTTP(w, r)
	})
}
