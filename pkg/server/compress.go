package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// negotiateEncoding picks br or gzip from an Accept-Encoding header, or ""
// when the client accepts neither.
func negotiateEncoding(accept string) string {
	var br, gz bool
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if q := strings.ReplaceAll(params, " ", ""); q == "q=0" || q == "q=0.0" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return "br"
	case gz:
		return "gzip"
	}
	return ""
}

// compressible reports whether a response of this type is worth encoding.
// Archives and images are already compressed.
func compressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(mediaType) {
	case "text/html", "text/plain", "text/css", "application/json":
		return true
	}
	return false
}

type compressWriter struct {
	gin.ResponseWriter
	encoding string
	enc      io.WriteCloser
	decided  bool
}

// decide runs before the first body byte, while headers can still change.
func (w *compressWriter) decide() {
	w.decided = true
	h := w.Header()
	if h.Get("Content-Encoding") != "" || !compressible(h.Get("Content-Type")) {
		return
	}
	h.Del("Content-Length")
	h.Set("Content-Encoding", w.encoding)
	h.Add("Vary", "Accept-Encoding")
	switch w.encoding {
	case "br":
		w.enc = brotli.NewWriterLevel(w.ResponseWriter, brotli.DefaultCompression)
	case "gzip":
		w.enc = gzip.NewWriter(w.ResponseWriter)
	}
}

func (w *compressWriter) Write(p []byte) (int, error) {
	if !w.decided {
		w.decide()
	}
	if w.enc == nil {
		return w.ResponseWriter.Write(p)
	}
	return w.enc.Write(p)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *compressWriter) Flush() {
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		f.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	return w.enc.Close()
}

// compress encodes text responses with brotli or gzip when the client
// accepts it.
func compress(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		cw := &compressWriter{ResponseWriter: c.Writer, encoding: encoding}
		c.Writer = cw
		defer func() {
			if err := cw.Close(); err != nil {
				logger.Warn("finish compressed response", "error", err, "request_id", c.GetString(requestIDKey))
			}
		}()
		c.Next()
	}
}
