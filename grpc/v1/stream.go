package v1

import (
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// grpcStream is the part of a generated bidi client stream the adapter uses
type grpcStream[PReq, PResp any] interface {
	Send(PReq) error
	Recv() (PResp, error)
	CloseSend() error
}

// stream converts between in-repo message types and generated ones
type stream[Req, Resp, PReq, PResp any] struct {
	grpcStream grpcStream[PReq, PResp]
	release    func()
	encode     func(Req) (PReq, error)
	// decode returns ok == false for server messages the client does not use
	decode func(PResp) (Resp, bool, error)

	closeOnce sync.Once
}

func newStream[Req, Resp, PReq, PResp any](
	s grpcStream[PReq, PResp],
	release func(),
	encode func(Req) (PReq, error),
	decode func(PResp) (Resp, bool, error),
) *stream[Req, Resp, PReq, PResp] {
	return &stream[Req, Resp, PReq, PResp]{
		grpcStream: s,
		release:    release,
		encode:     encode,
		decode:     decode,
	}
}

func (s *stream[Req, Resp, PReq, PResp]) Send(req Req) error {
	p, err := s.encode(req)
	if err != nil {
		return err
	}
	return s.grpcStream.Send(p)
}

func (s *stream[Req, Resp, PReq, PResp]) Recv() (Resp, error) {
	for {
		p, err := s.grpcStream.Recv()
		if err != nil {
			var zero Resp
			return zero, err
		}

		msg, ok, err := s.decode(p)
		if err != nil {
			var zero Resp
			return zero, err
		}
		if ok {
			return msg, nil
		}
	}
}

func (s *stream[Req, Resp, PReq, PResp]) CloseSend() error {
	return s.grpcStream.CloseSend()
}

// Close cancels the stream context, which aborts a pending Recv
func (s *stream[Req, Resp, PReq, PResp]) Close() error {
	s.closeOnce.Do(s.release)
	return nil
}

func timeToProto(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

func protoToTime(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}
