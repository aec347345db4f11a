package server

import (
	"fmt"
	"io"
	"net/http"
	"obj-rpc/codec"
	"obj-rpc/message"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// invocationHandler bridges one HTTP request to one bound operation:
//
//	read body → Codec.Decode → message.Call → middleware chain → operation
//	  → Codec.Encode(result) → 200
//
// Any failure on the way ends the request with a non-200 status and the
// error text as body. Nothing is shared between requests except the server
// itself and the exposed object.
type invocationHandler struct {
	server    *Server
	object    string
	operation string
}

func (h *invocationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.server
	log := s.logger.With(zap.String("object", h.object), zap.String("operation", h.operation))

	if name := r.Header.Get(codec.Header); name != "" && name != s.codec.Name() {
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("codec mismatch: server uses %s, request was encoded with %s", s.codec.Name(), name))
		return
	}

	// Step 1: read the whole body, bounded
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	// Step 2: decode (args, kwargs)
	v, err := s.codec.Decode(body)
	if err != nil {
		log.Debug("undecodable payload", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	call, err := message.CallFromValue(v)
	if err != nil {
		log.Debug("malformed call", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Step 3: middleware chain → business handler
	resp := s.handler(r.Context(), &message.Request{
		Object:    h.object,
		Operation: h.operation,
		Call:      call,
	})
	if resp == nil {
		resp = message.NoResponse()
	}
	if status := resp.HTTPStatus(); resp.Error != "" || status != http.StatusOK {
		text := resp.Error
		if text == "" {
			text = http.StatusText(status)
		}
		writeError(w, status, text)
		return
	}

	// Step 4: encode the return value
	data, err := s.codec.Encode(resp.Result)
	if err != nil {
		log.Warn("cannot encode result", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode result: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=us-ascii")
	w.Header().Set(codec.Header, s.codec.Name())
	w.WriteHeader(resp.HTTPStatus())
	if _, err := w.Write(data); err != nil {
		log.Debug("write response", zap.Error(err))
	}
}

// writeError answers with a plain text body holding exactly msg.
func writeError(w http.ResponseWriter, status int, msg string) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
