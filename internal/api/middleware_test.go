package api

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// hijackableRecorder is a ResponseRecorder that also implements
// http.Hijacker, standing in for a real server connection.
type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (r *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.hijacked = true
	server, client := net.Pipe()
	client.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}

func TestStatusWriter_HijackDelegates(t *testing.T) {
	rec := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	conn, rw, err := sw.Hijack()
	if err != nil {
		t.Fatalf("Hijack() error = %v", err)
	}
	defer conn.Close()

	if !rec.hijacked {
		t.Error("Hijack() did not reach the underlying writer")
	}
	if rw == nil {
		t.Error("Hijack() returned nil ReadWriter")
	}
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	// A plain recorder does not implement http.Hijacker.
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	if _, _, err := sw.Hijack(); err == nil {
		t.Error("Hijack() should fail when the underlying writer cannot hijack")
	}
}

func TestStatusWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusTeapot)

	if sw.status != http.StatusTeapot {
		t.Errorf("captured status = %d, want %d", sw.status, http.StatusTeapot)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("recorded status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}
