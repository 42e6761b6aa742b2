package v1

import (
	"fmt"

	"github.com/ydb-platform/ydb-go-genproto/Ydb_Topic_V1"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb_Issue"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb_Topic"

	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

func newWriteStream(s Ydb_Topic_V1.TopicService_StreamWriteClient, release func()) *stream[
	rawtopic.WriterClientMessage, rawtopic.WriterServerMessage,
	*Ydb_Topic.StreamWriteMessage_FromClient, *Ydb_Topic.StreamWriteMessage_FromServer,
] {
	return newStream[rawtopic.WriterClientMessage, rawtopic.WriterServerMessage](
		grpcStream[*Ydb_Topic.StreamWriteMessage_FromClient, *Ydb_Topic.StreamWriteMessage_FromServer](s),
		release, encodeWriterMessage, decodeWriterMessage,
	)
}

func encodeWriterMessage(msg rawtopic.WriterClientMessage) (*Ydb_Topic.StreamWriteMessage_FromClient, error) {
	switch m := msg.(type) {
	case *rawtopic.WriterInitRequest:
		req := &Ydb_Topic.StreamWriteMessage_InitRequest{
			Path:             m.Path,
			ProducerId:       m.ProducerID,
			WriteSessionMeta: m.WriteSessionMeta,
			GetLastSeqNo:     m.GetLastSeqNo,
		}
		if m.HasPartitionID {
			req.Partitioning = &Ydb_Topic.StreamWriteMessage_InitRequest_PartitionId{PartitionId: m.PartitionID}
		} else if m.MessageGroupID != "" {
			req.Partitioning = &Ydb_Topic.StreamWriteMessage_InitRequest_MessageGroupId{MessageGroupId: m.MessageGroupID}
		}
		return &Ydb_Topic.StreamWriteMessage_FromClient{
			ClientMessage: &Ydb_Topic.StreamWriteMessage_FromClient_InitRequest{InitRequest: req},
		}, nil

	case *rawtopic.WriteRequest:
		messages := make([]*Ydb_Topic.StreamWriteMessage_WriteRequest_MessageData, 0, len(m.Messages))
		for i := range m.Messages {
			md := &m.Messages[i]
			data := &Ydb_Topic.StreamWriteMessage_WriteRequest_MessageData{
				SeqNo:            md.SeqNo,
				CreatedAt:        timeToProto(md.CreatedAt),
				Data:             md.Data,
				UncompressedSize: md.UncompressedSize,
				MetadataItems:    metadataToProto(md.MetadataItems),
			}
			if md.MessageGroupID != "" {
				data.Partitioning = &Ydb_Topic.StreamWriteMessage_WriteRequest_MessageData_MessageGroupId{
					MessageGroupId: md.MessageGroupID,
				}
			}
			messages = append(messages, data)
		}
		return &Ydb_Topic.StreamWriteMessage_FromClient{
			ClientMessage: &Ydb_Topic.StreamWriteMessage_FromClient_WriteRequest{
				WriteRequest: &Ydb_Topic.StreamWriteMessage_WriteRequest{
					Messages: messages,
					Codec:    int32(m.Codec),
				},
			},
		}, nil

	case *rawtopic.UpdateTokenRequest:
		return &Ydb_Topic.StreamWriteMessage_FromClient{
			ClientMessage: &Ydb_Topic.StreamWriteMessage_FromClient_UpdateTokenRequest{
				UpdateTokenRequest: &Ydb_Topic.UpdateTokenRequest{Token: m.Token},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported writer client message: %T", msg)
	}
}

func decodeWriterMessage(p *Ydb_Topic.StreamWriteMessage_FromServer) (rawtopic.WriterServerMessage, bool, error) {
	meta := serverMeta(p.GetStatus(), p.GetIssues())

	switch m := p.GetServerMessage().(type) {
	case *Ydb_Topic.StreamWriteMessage_FromServer_InitResponse:
		resp := m.InitResponse
		codecs := resp.GetSupportedCodecs().GetCodecs()
		supported := make([]rawtopic.Codec, 0, len(codecs))
		for _, c := range codecs {
			supported = append(supported, rawtopic.Codec(c))
		}
		return &rawtopic.WriterInitResponse{
			ServerMessageMetadata: meta,
			LastSeqNo:             resp.GetLastSeqNo(),
			SessionID:             resp.GetSessionId(),
			PartitionID:           resp.GetPartitionId(),
			SupportedCodecs:       supported,
		}, true, nil

	case *Ydb_Topic.StreamWriteMessage_FromServer_WriteResponse:
		resp := m.WriteResponse
		acks := make([]rawtopic.WriteAck, 0, len(resp.GetAcks()))
		for _, a := range resp.GetAcks() {
			ack := rawtopic.WriteAck{SeqNo: a.GetSeqNo()}
			switch st := a.GetMessageWriteStatus().(type) {
			case *Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck_Written_:
				ack.Status = rawtopic.WriteAckWritten
				ack.Offset = st.Written.GetOffset()
			case *Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck_Skipped_:
				ack.Status = rawtopic.WriteAckSkipped
				ack.SkipReason = int32(st.Skipped.GetReason())
			}
			acks = append(acks, ack)
		}
		return &rawtopic.WriteResponse{
			ServerMessageMetadata: meta,
			Acks:                  acks,
			PartitionID:           resp.GetPartitionId(),
		}, true, nil

	case *Ydb_Topic.StreamWriteMessage_FromServer_UpdateTokenResponse:
		return &rawtopic.UpdateTokenResponse{ServerMessageMetadata: meta}, true, nil

	case nil:
		// a failed status may arrive without a payload
		if meta.Status != rawtopic.StatusSuccess {
			return &rawtopic.WriteResponse{ServerMessageMetadata: meta}, true, nil
		}
		return nil, false, nil

	default:
		return nil, false, nil
	}
}

func serverMeta(status Ydb.StatusIds_StatusCode, issues []*Ydb_Issue.IssueMessage) rawtopic.ServerMessageMetadata {
	meta := rawtopic.ServerMessageMetadata{Status: rawtopic.StatusCode(status)}
	if len(issues) > 0 {
		meta.Issues = make([]rawtopic.Issue, 0, len(issues))
		for _, is := range issues {
			meta.Issues = append(meta.Issues, rawtopic.Issue{Code: is.GetIssueCode(), Message: is.GetMessage()})
		}
	}
	return meta
}

func metadataToProto(items []rawtopic.MetadataItem) []*Ydb_Topic.MetadataItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]*Ydb_Topic.MetadataItem, 0, len(items))
	for _, it := range items {
		out = append(out, &Ydb_Topic.MetadataItem{Key: it.Key, Value: it.Value})
	}
	return out
}

func metadataFromProto(items []*Ydb_Topic.MetadataItem) []rawtopic.MetadataItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]rawtopic.MetadataItem, 0, len(items))
	for _, it := range items {
		out = append(out, rawtopic.MetadataItem{Key: it.GetKey(), Value: it.GetValue()})
	}
	return out
}
