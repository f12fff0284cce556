// Package wsutil holds the websocket upgrade plumbing shared by the hub
// session endpoint and the signaling broker endpoint.
package wsutil

import (
	"net/http"
	"os"

	"github.com/gorilla/websocket"
)

// Upgrader is shared by every websocket endpoint. Origin checks are
// relaxed outside production so local clients and test harnesses can
// connect without an Origin header.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if os.Getenv("ENVIRONMENT") != "production" {
			return true
		}
		return origin == allowedOrigin()
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func allowedOrigin() string {
	if o := os.Getenv("ALLOWED_ORIGIN"); o != "" {
		return o
	}
	return "https://localhost"
}

// WithWS registers a websocket handler on mux under path.
func WithWS(mux *http.ServeMux, path string, handler func(http.ResponseWriter, *http.Request)) {
	mux.HandleFunc(path, handler)
}
