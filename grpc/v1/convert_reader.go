package v1

import (
	"fmt"

	"github.com/ydb-platform/ydb-go-genproto/Ydb_Topic_V1"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb_Topic"

	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

func newReadStream(s Ydb_Topic_V1.TopicService_StreamReadClient, release func()) *stream[
	rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage,
	*Ydb_Topic.StreamReadMessage_FromClient, *Ydb_Topic.StreamReadMessage_FromServer,
] {
	return newStream[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage](
		grpcStream[*Ydb_Topic.StreamReadMessage_FromClient, *Ydb_Topic.StreamReadMessage_FromServer](s),
		release, encodeReaderMessage, decodeReaderMessage,
	)
}

func encodeReaderMessage(msg rawtopic.ReaderClientMessage) (*Ydb_Topic.StreamReadMessage_FromClient, error) {
	var cm Ydb_Topic.StreamReadMessage_FromClient

	switch m := msg.(type) {
	case *rawtopic.ReaderInitRequest:
		topics := make([]*Ydb_Topic.StreamReadMessage_InitRequest_TopicReadSettings, 0, len(m.Topics))
		for _, t := range m.Topics {
			topics = append(topics, &Ydb_Topic.StreamReadMessage_InitRequest_TopicReadSettings{
				Path:         t.Path,
				PartitionIds: t.PartitionIDs,
				ReadFrom:     timeToProto(t.ReadFrom),
			})
		}
		cm.ClientMessage = &Ydb_Topic.StreamReadMessage_FromClient_InitRequest{
			InitRequest: &Ydb_Topic.StreamReadMessage_InitRequest{
				TopicsReadSettings: topics,
				Consumer:           m.Consumer,
				ReaderName:         m.ReaderName,
			},
		}

	case *rawtopic.ReadRequest:
		cm.ClientMessage = &Ydb_Topic.StreamReadMessage_FromClient_ReadRequest{
			ReadRequest: &Ydb_Topic.StreamReadMessage_ReadRequest{BytesSize: m.BytesSize},
		}

	case *rawtopic.CommitOffsetRequest:
		commits := make([]*Ydb_Topic.StreamReadMessage_CommitOffsetRequest_PartitionCommitOffset, 0, len(m.CommitOffsets))
		for _, c := range m.CommitOffsets {
			offsets := make([]*Ydb_Topic.OffsetsRange, 0, len(c.Offsets))
			for _, r := range c.Offsets {
				offsets = append(offsets, &Ydb_Topic.OffsetsRange{Start: r.Start, End: r.End})
			}
			commits = append(commits, &Ydb_Topic.StreamReadMessage_CommitOffsetRequest_PartitionCommitOffset{
				PartitionSessionId: c.PartitionSessionID,
				Offsets:            offsets,
			})
		}
		cm.ClientMessage = &Ydb_Topic.StreamReadMessage_FromClient_CommitOffsetRequest{
			CommitOffsetRequest: &Ydb_Topic.StreamReadMessage_CommitOffsetRequest{CommitOffsets: commits},
		}

	case *rawtopic.UpdateTokenRequest:
		cm.ClientMessage = &Ydb_Topic.StreamReadMessage_FromClient_UpdateTokenRequest{
			UpdateTokenRequest: &Ydb_Topic.UpdateTokenRequest{Token: m.Token},
		}

	case *rawtopic.StartPartitionSessionResponse:
		cm.ClientMessage = &Ydb_Topic.StreamReadMessage_FromClient_StartPartitionSessionResponse{
			StartPartitionSessionResponse: &Ydb_Topic.StreamReadMessage_StartPartitionSessionResponse{
				PartitionSessionId: m.PartitionSessionID,
			},
		}

	case *rawtopic.StopPartitionSessionResponse:
		cm.ClientMessage = &Ydb_Topic.StreamReadMessage_FromClient_StopPartitionSessionResponse{
			StopPartitionSessionResponse: &Ydb_Topic.StreamReadMessage_StopPartitionSessionResponse{
				PartitionSessionId: m.PartitionSessionID,
			},
		}

	default:
		return nil, fmt.Errorf("unsupported reader client message: %T", msg)
	}

	return &cm, nil
}

func decodeReaderMessage(p *Ydb_Topic.StreamReadMessage_FromServer) (rawtopic.ReaderServerMessage, bool, error) {
	meta := serverMeta(p.GetStatus(), p.GetIssues())

	switch m := p.GetServerMessage().(type) {
	case *Ydb_Topic.StreamReadMessage_FromServer_InitResponse:
		return &rawtopic.ReaderInitResponse{
			ServerMessageMetadata: meta,
			SessionID:             m.InitResponse.GetSessionId(),
		}, true, nil

	case *Ydb_Topic.StreamReadMessage_FromServer_ReadResponse:
		return decodeReadResponse(meta, m.ReadResponse), true, nil

	case *Ydb_Topic.StreamReadMessage_FromServer_CommitOffsetResponse:
		committed := m.CommitOffsetResponse.GetPartitionsCommittedOffsets()
		resp := &rawtopic.CommitOffsetResponse{
			ServerMessageMetadata:      meta,
			PartitionsCommittedOffsets: make([]rawtopic.PartitionCommittedOffset, 0, len(committed)),
		}
		for _, c := range committed {
			resp.PartitionsCommittedOffsets = append(resp.PartitionsCommittedOffsets, rawtopic.PartitionCommittedOffset{
				PartitionSessionID: c.GetPartitionSessionId(),
				CommittedOffset:    c.GetCommittedOffset(),
			})
		}
		return resp, true, nil

	case *Ydb_Topic.StreamReadMessage_FromServer_UpdateTokenResponse:
		return &rawtopic.UpdateTokenResponse{ServerMessageMetadata: meta}, true, nil

	case *Ydb_Topic.StreamReadMessage_FromServer_StartPartitionSessionRequest:
		req := m.StartPartitionSessionRequest
		ps := req.GetPartitionSession()
		offsets := req.GetPartitionOffsets()
		return &rawtopic.StartPartitionSessionRequest{
			ServerMessageMetadata: meta,
			PartitionSession: rawtopic.PartitionSession{
				PartitionSessionID: ps.GetPartitionSessionId(),
				Path:               ps.GetPath(),
				PartitionID:        ps.GetPartitionId(),
			},
			CommittedOffset:  req.GetCommittedOffset(),
			PartitionOffsets: rawtopic.OffsetRange{Start: offsets.GetStart(), End: offsets.GetEnd()},
		}, true, nil

	case *Ydb_Topic.StreamReadMessage_FromServer_StopPartitionSessionRequest:
		req := m.StopPartitionSessionRequest
		return &rawtopic.StopPartitionSessionRequest{
			ServerMessageMetadata: meta,
			PartitionSessionID:    req.GetPartitionSessionId(),
			Graceful:              req.GetGraceful(),
			CommittedOffset:       req.GetCommittedOffset(),
		}, true, nil

	case nil:
		if meta.Status != rawtopic.StatusSuccess {
			return &rawtopic.ReadResponse{ServerMessageMetadata: meta}, true, nil
		}
		return nil, false, nil

	default:
		// partition status responses are never requested
		return nil, false, nil
	}
}

func decodeReadResponse(meta rawtopic.ServerMessageMetadata, p *Ydb_Topic.StreamReadMessage_ReadResponse) *rawtopic.ReadResponse {
	resp := &rawtopic.ReadResponse{
		ServerMessageMetadata: meta,
		BytesSize:             p.GetBytesSize(),
		PartitionData:         make([]rawtopic.PartitionData, 0, len(p.GetPartitionData())),
	}

	for _, pd := range p.GetPartitionData() {
		data := rawtopic.PartitionData{
			PartitionSessionID: pd.GetPartitionSessionId(),
			Batches:            make([]rawtopic.Batch, 0, len(pd.GetBatches())),
		}
		for _, b := range pd.GetBatches() {
			batch := rawtopic.Batch{
				ProducerID:       b.GetProducerId(),
				WriteSessionMeta: b.GetWriteSessionMeta(),
				Codec:            rawtopic.Codec(b.GetCodec()),
				WrittenAt:        protoToTime(b.GetWrittenAt()),
				MessageData:      make([]rawtopic.ReadMessageData, 0, len(b.GetMessageData())),
			}
			for _, md := range b.GetMessageData() {
				batch.MessageData = append(batch.MessageData, rawtopic.ReadMessageData{
					Offset:           md.GetOffset(),
					SeqNo:            md.GetSeqNo(),
					CreatedAt:        protoToTime(md.GetCreatedAt()),
					Data:             md.GetData(),
					UncompressedSize: md.GetUncompressedSize(),
					MessageGroupID:   md.GetMessageGroupId(),
					MetadataItems:    metadataFromProto(md.GetMetadataItems()),
				})
			}
			data.Batches = append(data.Batches, batch)
		}
		resp.PartitionData = append(resp.PartitionData, data)
	}

	return resp
}
