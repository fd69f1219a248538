// Package protocol defines the newline-delimited JSON messages exchanged
// over the sampler socket.
package protocol

import (
	"encoding/json"
	"time"
)

// DefaultSocketPath is where the server listens unless configured otherwise.
const DefaultSocketPath = "/tmp/line_sampler.sock"

// DefaultMaxFrameBytes bounds a single request or response line.
const DefaultMaxFrameBytes = 10 * 1024 * 1024

// Operations understood by the server.
const (
	OpLoad   = "load"
	OpSample = "sample"
	OpStats  = "stats"
)

// Request is a single decoded command.
//
// A load carries either Lines or Path. Path names a file the server reads
// itself; it should be absolute since the server's working directory is not
// the client's.
type Request struct {
	Op    string   `json:"op"`
	Lines []string `json:"lines,omitempty"`
	Path  string   `json:"path,omitempty"`
	K     *int     `json:"k,omitempty"`
}

// MarshalJSON omits "lines" only when it is nil, so loading an empty list
// still sends "lines":[].
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	if r.Lines == nil {
		return json.Marshal(plain(r))
	}

	return json.Marshal(struct {
		plain
		Lines []string `json:"lines"`
	}{plain: plain(r), Lines: r.Lines})
}

// Stats mirrors the pool counters plus server-level figures.
type Stats struct {
	Available    int       `json:"available"`
	TotalLoaded  int64     `json:"total_loaded"`
	TotalSampled int64     `json:"total_sampled"`
	LastLoad     time.Time `json:"last_load"`
	LastSample   time.Time `json:"last_sample"`
	Connections  int       `json:"connections"`
}

// Response is the reply to one Request.
type Response struct {
	OK     bool     `json:"ok"`
	Total  *int     `json:"total,omitempty"`
	Loaded *int     `json:"loaded,omitempty"`
	Lines  []string `json:"lines"`
	Stats  *Stats   `json:"stats,omitempty"`
	Error  string   `json:"error,omitempty"`
	Code   Code     `json:"code,omitempty"`
}

// MarshalJSON omits "lines" only when it is nil, so an empty sample still
// encodes as "lines":[].
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	if r.Lines != nil {
		return json.Marshal(plain(r))
	}

	return json.Marshal(struct {
		plain
		Lines []string `json:"lines,omitempty"`
	}{plain: plain(r)})
}

// LoadedResponse acknowledges a load of n lines leaving total lines in the pool.
func LoadedResponse(total, n int) Response {
	return Response{OK: true, Total: &total, Loaded: &n}
}

// TotalResponse acknowledges a load with just the new pool size.
func TotalResponse(total int) Response {
	return Response{OK: true, Total: &total}
}

// LinesResponse carries sampled lines.
func LinesResponse(lines []string) Response {
	if lines == nil {
		lines = []string{}
	}
	return Response{OK: true, Lines: lines}
}

// StatsResponse carries a stats snapshot.
func StatsResponse(s Stats) Response {
	return Response{OK: true, Stats: &s}
}

// Fail turns err into an error response.
func Fail(err error) Response {
	return Response{
		OK:    false,
		Error: err.Error(),
		Code:  CodeOf(err),
	}
}
