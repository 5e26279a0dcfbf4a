// Package responseformat provides JSON/MessagePack content negotiation for
// the shadow computation query API (spec.md §6), adapted from the
// teacher's response formatter: a query client picks the wire format with
// a `format=msgpack` query parameter, JSON otherwise.
package responseformat

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Formatter encodes and writes query-API responses in JSON or MessagePack.
type Formatter struct{}

// NewFormatter creates a response formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WriteResponse writes data in the format requested by req's format query
// parameter (msgpack, or JSON by default), after setting any caller headers
// and the query API's permissive CORS header.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) error {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if req.URL.Query().Get("format") == "msgpack" {
		return f.writeMsgPack(w, data)
	}
	return f.writeJSON(w, data)
}

// WriteRunResponse wraps data with the run ID it belongs to, for endpoints
// that answer a specific run's summary/monthly/seasonal query.
func (f *Formatter) WriteRunResponse(w http.ResponseWriter, req *http.Request, runID string, data any) error {
	return f.WriteResponse(w, req, RunEnvelope{RunID: runID, Data: data}, nil)
}

// RunEnvelope wraps a query response with the run ID it was computed for.
type RunEnvelope struct {
	RunID string `json:"run_id"`
	Data  any    `json:"data"`
}

func (f *Formatter) writeJSON(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/x-msgpack")
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json")
	return encoder.Encode(data)
}
