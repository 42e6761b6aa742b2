package v1

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb_Issue"
	"github.com/ydb-platform/ydb-go-genproto/protos/Ydb_Topic"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ydb-platform/ydb-topic-go/credentials"
	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

func TestEncodeWriterMessage(t *testing.T) {
	t.Run("init by message group", func(t *testing.T) {
		p, err := encodeWriterMessage(&rawtopic.WriterInitRequest{
			Path:           "/local/topic",
			ProducerID:     "p1",
			MessageGroupID: "p1",
			GetLastSeqNo:   true,
		})
		require.NoError(t, err)

		init := p.GetInitRequest()
		require.NotNil(t, init)
		assert.Equal(t, "/local/topic", init.GetPath())
		assert.Equal(t, "p1", init.GetProducerId())
		assert.Equal(t, "p1", init.GetMessageGroupId())
		assert.True(t, init.GetGetLastSeqNo())
	})

	t.Run("init by partition", func(t *testing.T) {
		p, err := encodeWriterMessage(&rawtopic.WriterInitRequest{
			ProducerID:     "p1",
			PartitionID:    0,
			HasPartitionID: true,
		})
		require.NoError(t, err)
		part, ok := p.GetInitRequest().GetPartitioning().(*Ydb_Topic.StreamWriteMessage_InitRequest_PartitionId)
		require.True(t, ok)
		assert.Equal(t, int64(0), part.PartitionId)
	})

	t.Run("write request", func(t *testing.T) {
		created := time.Unix(1700000000, 0).UTC()
		p, err := encodeWriterMessage(&rawtopic.WriteRequest{
			Codec: rawtopic.CodecZstd,
			Messages: []rawtopic.MessageData{
				{SeqNo: 1, CreatedAt: created, Data: []byte("a"), UncompressedSize: 1, MessageGroupID: "g"},
				{SeqNo: 2, Data: []byte("b"), MetadataItems: []rawtopic.MetadataItem{{Key: "k", Value: []byte("v")}}},
			},
		})
		require.NoError(t, err)

		wr := p.GetWriteRequest()
		require.NotNil(t, wr)
		assert.Equal(t, int32(rawtopic.CodecZstd), wr.GetCodec())
		require.Len(t, wr.GetMessages(), 2)
		assert.Equal(t, created, wr.GetMessages()[0].GetCreatedAt().AsTime())
		assert.Equal(t, "g", wr.GetMessages()[0].GetMessageGroupId())
		assert.Nil(t, wr.GetMessages()[1].GetCreatedAt())
		assert.Equal(t, "k", wr.GetMessages()[1].GetMetadataItems()[0].GetKey())
	})

	t.Run("update token", func(t *testing.T) {
		p, err := encodeWriterMessage(&rawtopic.UpdateTokenRequest{Token: "t"})
		require.NoError(t, err)
		assert.Equal(t, "t", p.GetUpdateTokenRequest().GetToken())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := encodeWriterMessage(nil)
		assert.Error(t, err)
	})
}

func TestDecodeWriterMessage(t *testing.T) {
	t.Run("init response", func(t *testing.T) {
		msg, ok, err := decodeWriterMessage(&Ydb_Topic.StreamWriteMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamWriteMessage_FromServer_InitResponse{
				InitResponse: &Ydb_Topic.StreamWriteMessage_InitResponse{
					LastSeqNo:       10,
					SessionId:       "s1",
					PartitionId:     3,
					SupportedCodecs: &Ydb_Topic.SupportedCodecs{Codecs: []int32{1, 4}},
				},
			},
		})
		require.NoError(t, err)
		require.True(t, ok)

		resp := msg.(*rawtopic.WriterInitResponse)
		assert.NoError(t, resp.StatusError())
		assert.Equal(t, int64(10), resp.LastSeqNo)
		assert.Equal(t, "s1", resp.SessionID)
		assert.Equal(t, []rawtopic.Codec{rawtopic.CodecRaw, rawtopic.CodecZstd}, resp.SupportedCodecs)
	})

	t.Run("acks", func(t *testing.T) {
		msg, ok, err := decodeWriterMessage(&Ydb_Topic.StreamWriteMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamWriteMessage_FromServer_WriteResponse{
				WriteResponse: &Ydb_Topic.StreamWriteMessage_WriteResponse{
					Acks: []*Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck{
						{
							SeqNo: 1,
							MessageWriteStatus: &Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck_Written_{
								Written: &Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck_Written{Offset: 42},
							},
						},
						{
							SeqNo: 2,
							MessageWriteStatus: &Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck_Skipped_{
								Skipped: &Ydb_Topic.StreamWriteMessage_WriteResponse_WriteAck_Skipped{},
							},
						},
					},
				},
			},
		})
		require.NoError(t, err)
		require.True(t, ok)

		acks := msg.(*rawtopic.WriteResponse).Acks
		require.Len(t, acks, 2)
		assert.Equal(t, rawtopic.WriteAck{SeqNo: 1, Status: rawtopic.WriteAckWritten, Offset: 42}, acks[0])
		assert.Equal(t, rawtopic.WriteAckSkipped, acks[1].Status)
	})

	t.Run("status without payload", func(t *testing.T) {
		msg, ok, err := decodeWriterMessage(&Ydb_Topic.StreamWriteMessage_FromServer{
			Status: Ydb.StatusIds_OVERLOADED,
			Issues: []*Ydb_Issue.IssueMessage{{Message: "slow down", IssueCode: 7}},
		})
		require.NoError(t, err)
		require.True(t, ok)

		var serr *rawtopic.StatusError
		require.ErrorAs(t, msg.StatusError(), &serr)
		assert.Equal(t, rawtopic.StatusOverloaded, serr.Status)
		assert.Equal(t, []rawtopic.Issue{{Code: 7, Message: "slow down"}}, serr.Issues)
	})

	t.Run("empty success is skipped", func(t *testing.T) {
		_, ok, err := decodeWriterMessage(&Ydb_Topic.StreamWriteMessage_FromServer{Status: Ydb.StatusIds_SUCCESS})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEncodeReaderMessage(t *testing.T) {
	t.Run("init", func(t *testing.T) {
		from := time.Unix(1700000000, 0).UTC()
		p, err := encodeReaderMessage(&rawtopic.ReaderInitRequest{
			Consumer:   "c",
			ReaderName: "r",
			Topics: []rawtopic.TopicReadSettings{
				{Path: "/a", PartitionIDs: []int64{1, 2}, ReadFrom: from},
				{Path: "/b"},
			},
		})
		require.NoError(t, err)

		init := p.GetInitRequest()
		assert.Equal(t, "c", init.GetConsumer())
		require.Len(t, init.GetTopicsReadSettings(), 2)
		assert.Equal(t, []int64{1, 2}, init.GetTopicsReadSettings()[0].GetPartitionIds())
		assert.Equal(t, from, init.GetTopicsReadSettings()[0].GetReadFrom().AsTime())
		assert.Nil(t, init.GetTopicsReadSettings()[1].GetReadFrom())
	})

	t.Run("commit", func(t *testing.T) {
		p, err := encodeReaderMessage(&rawtopic.CommitOffsetRequest{
			CommitOffsets: []rawtopic.PartitionCommitOffset{
				{PartitionSessionID: 7, Offsets: []rawtopic.OffsetRange{{Start: 100, End: 105}}},
			},
		})
		require.NoError(t, err)

		commits := p.GetCommitOffsetRequest().GetCommitOffsets()
		require.Len(t, commits, 1)
		assert.Equal(t, int64(7), commits[0].GetPartitionSessionId())
		assert.Equal(t, int64(100), commits[0].GetOffsets()[0].GetStart())
		assert.Equal(t, int64(105), commits[0].GetOffsets()[0].GetEnd())
	})

	t.Run("control messages", func(t *testing.T) {
		p, err := encodeReaderMessage(&rawtopic.ReadRequest{BytesSize: 1024})
		require.NoError(t, err)
		assert.Equal(t, int64(1024), p.GetReadRequest().GetBytesSize())

		p, err = encodeReaderMessage(&rawtopic.StartPartitionSessionResponse{PartitionSessionID: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.GetStartPartitionSessionResponse().GetPartitionSessionId())

		p, err = encodeReaderMessage(&rawtopic.StopPartitionSessionResponse{PartitionSessionID: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(4), p.GetStopPartitionSessionResponse().GetPartitionSessionId())
	})
}

func TestDecodeReaderMessage(t *testing.T) {
	t.Run("read response", func(t *testing.T) {
		written := time.Unix(1700000001, 0).UTC()
		msg, ok, err := decodeReaderMessage(&Ydb_Topic.StreamReadMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_ReadResponse{
				ReadResponse: &Ydb_Topic.StreamReadMessage_ReadResponse{
					BytesSize: 300,
					PartitionData: []*Ydb_Topic.StreamReadMessage_ReadResponse_PartitionData{{
						PartitionSessionId: 7,
						Batches: []*Ydb_Topic.StreamReadMessage_ReadResponse_Batch{{
							ProducerId: "p",
							Codec:      1,
							WrittenAt:  timestamppb.New(written),
							MessageData: []*Ydb_Topic.StreamReadMessage_ReadResponse_MessageData{
								{Offset: 100, SeqNo: 1, Data: []byte("x"), MessageGroupId: "g"},
								{Offset: 101, SeqNo: 2, Data: []byte("y")},
							},
						}},
					}},
				},
			},
		})
		require.NoError(t, err)
		require.True(t, ok)

		resp := msg.(*rawtopic.ReadResponse)
		assert.Equal(t, int64(300), resp.BytesSize)
		require.Len(t, resp.PartitionData, 1)
		batch := resp.PartitionData[0].Batches[0]
		assert.Equal(t, "p", batch.ProducerID)
		assert.Equal(t, rawtopic.CodecRaw, batch.Codec)
		assert.Equal(t, written, batch.WrittenAt)
		require.Len(t, batch.MessageData, 2)
		assert.Equal(t, int64(100), batch.MessageData[0].Offset)
		assert.Equal(t, "g", batch.MessageData[0].MessageGroupID)
		assert.True(t, batch.MessageData[1].CreatedAt.IsZero())
	})

	t.Run("start partition session", func(t *testing.T) {
		msg, ok, err := decodeReaderMessage(&Ydb_Topic.StreamReadMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_StartPartitionSessionRequest{
				StartPartitionSessionRequest: &Ydb_Topic.StreamReadMessage_StartPartitionSessionRequest{
					PartitionSession: &Ydb_Topic.StreamReadMessage_PartitionSession{
						PartitionSessionId: 7,
						Path:               "/a",
						PartitionId:        2,
					},
					CommittedOffset:  100,
					PartitionOffsets: &Ydb_Topic.OffsetsRange{Start: 50, End: 200},
				},
			},
		})
		require.NoError(t, err)
		require.True(t, ok)

		req := msg.(*rawtopic.StartPartitionSessionRequest)
		assert.Equal(t, rawtopic.PartitionSession{PartitionSessionID: 7, Path: "/a", PartitionID: 2}, req.PartitionSession)
		assert.Equal(t, int64(100), req.CommittedOffset)
		assert.Equal(t, rawtopic.OffsetRange{Start: 50, End: 200}, req.PartitionOffsets)
	})

	t.Run("stop and commit", func(t *testing.T) {
		msg, _, err := decodeReaderMessage(&Ydb_Topic.StreamReadMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_StopPartitionSessionRequest{
				StopPartitionSessionRequest: &Ydb_Topic.StreamReadMessage_StopPartitionSessionRequest{
					PartitionSessionId: 7,
					Graceful:           true,
					CommittedOffset:    120,
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, &rawtopic.StopPartitionSessionRequest{
			ServerMessageMetadata: rawtopic.ServerMessageMetadata{Status: rawtopic.StatusSuccess},
			PartitionSessionID:    7,
			Graceful:              true,
			CommittedOffset:       120,
		}, msg)

		msg, _, err = decodeReaderMessage(&Ydb_Topic.StreamReadMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_CommitOffsetResponse{
				CommitOffsetResponse: &Ydb_Topic.StreamReadMessage_CommitOffsetResponse{
					PartitionsCommittedOffsets: []*Ydb_Topic.StreamReadMessage_CommitOffsetResponse_PartitionCommittedOffset{
						{PartitionSessionId: 7, CommittedOffset: 105},
					},
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []rawtopic.PartitionCommittedOffset{{PartitionSessionID: 7, CommittedOffset: 105}},
			msg.(*rawtopic.CommitOffsetResponse).PartitionsCommittedOffsets)
	})

	t.Run("partition status is skipped", func(t *testing.T) {
		_, ok, err := decodeReaderMessage(&Ydb_Topic.StreamReadMessage_FromServer{
			Status: Ydb.StatusIds_SUCCESS,
			ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_PartitionSessionStatusResponse{
				PartitionSessionStatusResponse: &Ydb_Topic.StreamReadMessage_PartitionSessionStatusResponse{},
			},
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

type fakeGRPCStream struct {
	sent   []*Ydb_Topic.StreamReadMessage_FromClient
	recv   []*Ydb_Topic.StreamReadMessage_FromServer
	closed bool
}

func (f *fakeGRPCStream) Send(m *Ydb_Topic.StreamReadMessage_FromClient) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeGRPCStream) Recv() (*Ydb_Topic.StreamReadMessage_FromServer, error) {
	if len(f.recv) == 0 {
		return nil, io.EOF
	}
	m := f.recv[0]
	f.recv = f.recv[1:]
	return m, nil
}

func (f *fakeGRPCStream) CloseSend() error {
	f.closed = true
	return nil
}

func TestStream(t *testing.T) {
	fake := &fakeGRPCStream{
		recv: []*Ydb_Topic.StreamReadMessage_FromServer{
			{
				Status: Ydb.StatusIds_SUCCESS,
				ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_PartitionSessionStatusResponse{
					PartitionSessionStatusResponse: &Ydb_Topic.StreamReadMessage_PartitionSessionStatusResponse{},
				},
			},
			{
				Status: Ydb.StatusIds_SUCCESS,
				ServerMessage: &Ydb_Topic.StreamReadMessage_FromServer_InitResponse{
					InitResponse: &Ydb_Topic.StreamReadMessage_InitResponse{SessionId: "s1"},
				},
			},
		},
	}
	released := 0
	s := newStream[rawtopic.ReaderClientMessage, rawtopic.ReaderServerMessage](
		grpcStream[*Ydb_Topic.StreamReadMessage_FromClient, *Ydb_Topic.StreamReadMessage_FromServer](fake),
		func() { released++ }, encodeReaderMessage, decodeReaderMessage,
	)

	require.NoError(t, s.Send(&rawtopic.ReadRequest{BytesSize: 1}))
	require.Len(t, fake.sent, 1)

	msg, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "s1", msg.(*rawtopic.ReaderInitResponse).SessionID)

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.CloseSend())
	assert.True(t, fake.closed)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, released)
}

type failingProvider struct{}

func (failingProvider) Token(context.Context) (string, error) {
	return "", errors.New("no token")
}

func TestConnHeaders(t *testing.T) {
	t.Run("database and token", func(t *testing.T) {
		c := newConn(nil, "/local", credentials.Static("secret"), slog.Default())

		ctx, h, err := c.open(context.Background())
		require.NoError(t, err)
		defer c.release(h)

		md, ok := metadata.FromOutgoingContext(ctx)
		require.True(t, ok)
		assert.Equal(t, []string{"/local"}, md.Get(HeaderDatabase))
		assert.Equal(t, []string{"secret"}, md.Get(HeaderAuthTicket))
		assert.NotEmpty(t, md.Get(HeaderBuildInfo))
	})

	t.Run("anonymous", func(t *testing.T) {
		c := newConn(nil, "", nil, slog.Default())

		ctx, h, err := c.open(context.Background())
		require.NoError(t, err)
		defer c.release(h)

		md, _ := metadata.FromOutgoingContext(ctx)
		assert.Empty(t, md.Get(HeaderAuthTicket))
		assert.Empty(t, md.Get(HeaderDatabase))
	})

	t.Run("token error", func(t *testing.T) {
		c := newConn(nil, "/local", failingProvider{}, slog.Default())
		_, _, err := c.open(context.Background())
		assert.Error(t, err)
	})

	t.Run("closed", func(t *testing.T) {
		c := newConn(nil, "/local", nil, slog.Default())

		ctx, h, err := c.open(context.Background())
		require.NoError(t, err)
		_ = h

		require.NoError(t, c.Close())
		assert.ErrorIs(t, ctx.Err(), context.Canceled)

		_, _, err = c.open(context.Background())
		assert.ErrorIs(t, err, ErrConnClosed)
	})
}
