package proto

import (
	"fmt"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Version is the tunnel protocol version. Both ends must agree; the server
// rejects a handshake carrying anything else.
const Version = 1

// TunnelPath is the well-known endpoint the server reserves for tunnel
// connections; every other path is webhook ingress.
const TunnelPath = "/__hookcast__/"

// Auth is sent by client to server as the first frame on the tunnel.
type Auth struct {
	Version int    `msgpack:"version"`
	Name    string `msgpack:"name"`
	Secret  string `msgpack:"secret"`
}

// AuthReply server -> client acknowledgement or rejection. A rejection is
// followed by connection close.
type AuthReply struct {
	OK  bool   `msgpack:"ok"`
	Msg string `msgpack:"msg"`
}

// Header is a single HTTP header field. Order and duplicates are preserved
// across the wire, which http.Header cannot guarantee on its own.
type Header struct {
	Name  string `msgpack:"name"`
	Value string `msgpack:"value"`
}

// RequestMessage is the relayed form of one inbound webhook call. Body is
// opaque bytes; the codec never inspects it.
type RequestMessage struct {
	Method   string   `msgpack:"method"`
	FullPath string   `msgpack:"fullpath"`
	Headers  []Header `msgpack:"headers"`
	Body     []byte   `msgpack:"body"`
}

// Get returns the first value for name (exact match) or empty.
func (r *RequestMessage) Get(name string) string {
	for _, h := range r.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// DecodeError reports bytes that do not form a valid message.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

var methods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// ValidMethod reports whether m is one of the enumerated HTTP verbs.
func ValidMethod(m string) bool { return methods[m] }

// EncodeRequest serializes r for the wire.
func EncodeRequest(r RequestMessage) ([]byte, error) {
	return msgpack.Marshal(&r)
}

// DecodeRequest parses bytes produced by EncodeRequest. Malformed input and
// unknown verb tokens yield a *DecodeError.
func DecodeRequest(b []byte) (RequestMessage, error) {
	var r RequestMessage
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return RequestMessage{}, &DecodeError{Reason: "bad request message", Err: err}
	}
	if !ValidMethod(r.Method) {
		return RequestMessage{}, &DecodeError{Reason: fmt.Sprintf("unknown method %q", r.Method)}
	}
	if r.FullPath == "" {
		return RequestMessage{}, &DecodeError{Reason: "empty path"}
	}
	return r, nil
}

func EncodeAuth(a Auth) ([]byte, error) { return msgpack.Marshal(&a) }

func DecodeAuth(b []byte) (Auth, error) {
	var a Auth
	if err := msgpack.Unmarshal(b, &a); err != nil {
		return Auth{}, &DecodeError{Reason: "bad auth message", Err: err}
	}
	return a, nil
}

func EncodeAuthReply(r AuthReply) ([]byte, error) { return msgpack.Marshal(&r) }

func DecodeAuthReply(b []byte) (AuthReply, error) {
	var r AuthReply
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return AuthReply{}, &DecodeError{Reason: "bad auth reply", Err: err}
	}
	return r, nil
}
