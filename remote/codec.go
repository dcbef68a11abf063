// Package remote lets a pool forward branches of the exploration to worker
// processes over gRPC.
//
// A worker holds the program and configuration it was started with. Each
// request carries an execution graph, which the worker explores to
// completion with a fresh driver before sending back the merged counters,
// reports and histograms. Messages are encoded with protowire by a codec
// registered under the name "weazer", so no generated code is needed.
package remote

import (
	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	"google.golang.org/grpc/encoding"
)

const codecName = "weazer"

func init() {
	encoding.RegisterCodec(codec{})
}

// A message the codec knows how to move
type message interface {
	marshal() []byte
	unmarshal([]byte) error
}

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, errors.Errorf("remote: cannot marshal %T", v)
	}
	return m.marshal(), nil
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return errors.Errorf("remote: cannot unmarshal into %T", v)
	}
	return m.unmarshal(data)
}

func (codec) Name() string {
	return codecName
}

// Asks a worker to explore a state of the named program. A nil state
// stands for the empty graph.
type exploreRequest struct {
	program string
	state   *verifier.State
}

func (r *exploreRequest) marshal() []byte {
	var e encoder
	e.string(1, r.program)
	if r.state != nil {
		e.bytes(2, encodeState(r.state))
	}
	return e.b
}

func (r *exploreRequest) unmarshal(b []byte) error {
	*r = exploreRequest{}
	return fields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			r.program = string(f.b)
		case 2:
			r.state, err = decodeState(f.b)
		}
		return err
	})
}

type exploreResponse struct {
	res *verifier.Result
}

func (r *exploreResponse) marshal() []byte {
	if r.res == nil {
		return nil
	}
	var e encoder
	e.bytes(1, encodeResult(r.res))
	return e.b
}

func (r *exploreResponse) unmarshal(b []byte) error {
	*r = exploreResponse{}
	return fields(b, func(f field) error {
		var err error
		if f.num == 1 {
			r.res, err = decodeResult(f.b)
		}
		return err
	})
}

