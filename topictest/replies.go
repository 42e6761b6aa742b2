package topictest

import (
	"fmt"
	"sync/atomic"

	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

var sessionSeq atomic.Int64

func nextSessionID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, sessionSeq.Add(1))
}

// WriterInitReply answers writer init requests with a successful response
// reporting lastSeqNo
func WriterInitReply(lastSeqNo int64) func(rawtopic.WriterClientMessage) (rawtopic.WriterServerMessage, bool) {
	return func(req rawtopic.WriterClientMessage) (rawtopic.WriterServerMessage, bool) {
		if _, ok := req.(*rawtopic.WriterInitRequest); !ok {
			return nil, false
		}
		return &rawtopic.WriterInitResponse{
			ServerMessageMetadata: rawtopic.ServerMessageMetadata{Status: rawtopic.StatusSuccess},
			LastSeqNo:             lastSeqNo,
			SessionID:             nextSessionID("writer"),
			SupportedCodecs:       []rawtopic.Codec{rawtopic.CodecRaw, rawtopic.CodecGzip, rawtopic.CodecZstd},
		}, true
	}
}

// ReaderInitReply answers reader init requests with a successful response
func ReaderInitReply() func(rawtopic.ReaderClientMessage) (rawtopic.ReaderServerMessage, bool) {
	return func(req rawtopic.ReaderClientMessage) (rawtopic.ReaderServerMessage, bool) {
		if _, ok := req.(*rawtopic.ReaderInitRequest); !ok {
			return nil, false
		}
		return &rawtopic.ReaderInitResponse{
			ServerMessageMetadata: rawtopic.ServerMessageMetadata{Status: rawtopic.StatusSuccess},
			SessionID:             nextSessionID("reader"),
		}, true
	}
}

// Success is the metadata of a successful server message
func Success() rawtopic.ServerMessageMetadata {
	return rawtopic.ServerMessageMetadata{Status: rawtopic.StatusSuccess}
}

// WriterAckReply answers init requests like WriterInitReply and acks every
// message of a write request as written at offset seqNo-1
func WriterAckReply(lastSeqNo int64) func(rawtopic.WriterClientMessage) (rawtopic.WriterServerMessage, bool) {
	initReply := WriterInitReply(lastSeqNo)
	return func(req rawtopic.WriterClientMessage) (rawtopic.WriterServerMessage, bool) {
		wr, ok := req.(*rawtopic.WriteRequest)
		if !ok {
			return initReply(req)
		}

		resp := &rawtopic.WriteResponse{ServerMessageMetadata: Success()}
		for _, m := range wr.Messages {
			resp.Acks = append(resp.Acks, rawtopic.WriteAck{
				SeqNo:  m.SeqNo,
				Status: rawtopic.WriteAckWritten,
				Offset: m.SeqNo - 1,
			})
		}
		return resp, true
	}
}
