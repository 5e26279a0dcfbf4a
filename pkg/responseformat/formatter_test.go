package responseformat

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type sample struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func TestWriteResponseJSONDefault(t *testing.T) {
	f := NewFormatter()
	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	rec := httptest.NewRecorder()

	if err := f.WriteResponse(rec, req, sample{A: 1, B: "x"}, nil); err != nil {
		t.Fatalf("WriteResponse failed: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header to be set")
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	f := NewFormatter()
	req := httptest.NewRequest(http.MethodGet, "/summary?format=msgpack", nil)
	rec := httptest.NewRecorder()

	if err := f.WriteResponse(rec, req, sample{A: 2, B: "y"}, nil); err != nil {
		t.Fatalf("WriteResponse failed: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Errorf("Content-Type = %q, want application/x-msgpack", ct)
	}

	var decoded sample
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode msgpack body: %v", err)
	}
	if decoded.A != 2 || decoded.B != "y" {
		t.Errorf("decoded = %+v, want {2 y}", decoded)
	}
}

func TestWriteRunResponseWrapsRunID(t *testing.T) {
	f := NewFormatter()
	req := httptest.NewRequest(http.MethodGet, "/runs/abc/summary", nil)
	rec := httptest.NewRecorder()

	if err := f.WriteRunResponse(rec, req, "abc", sample{A: 3, B: "z"}); err != nil {
		t.Fatalf("WriteRunResponse failed: %v", err)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a non-empty response body")
	}
}
