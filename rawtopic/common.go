// Package rawtopic holds the value types exchanged over topic service streams.
// They mirror the protocol messages field by field and carry no behaviour
// beyond status inspection; encoding lives in the transport.
package rawtopic

import (
	"fmt"
	"strings"

	"github.com/ydb-platform/ydb-topic-go/models"
)

// Codec identifies the payload compression of a write request or a read batch
type Codec int32

const (
	CodecUnspecified Codec = 0
	CodecRaw         Codec = 1
	CodecGzip        Codec = 2
	CodecLzop        Codec = 3
	CodecZstd        Codec = 4

	// CodecCustomerFirst is the first codec id reserved for client-defined codecs
	CodecCustomerFirst Codec = 10000
)

func (c Codec) String() string {
	switch c {
	case CodecUnspecified:
		return "unspecified"
	case CodecRaw:
		return "raw"
	case CodecGzip:
		return "gzip"
	case CodecLzop:
		return "lzop"
	case CodecZstd:
		return "zstd"
	default:
		if c >= CodecCustomerFirst {
			return fmt.Sprintf("custom(%d)", int32(c))
		}
		return fmt.Sprintf("unknown(%d)", int32(c))
	}
}

// StatusCode is the server operation status carried by every server message
type StatusCode int32

const (
	StatusUnspecified        StatusCode = 0
	StatusSuccess            StatusCode = 400000
	StatusBadRequest         StatusCode = 400010
	StatusUnauthorized       StatusCode = 400020
	StatusInternalError      StatusCode = 400030
	StatusAborted            StatusCode = 400040
	StatusUnavailable        StatusCode = 400050
	StatusOverloaded         StatusCode = 400060
	StatusSchemeError        StatusCode = 400070
	StatusGenericError       StatusCode = 400080
	StatusTimeout            StatusCode = 400090
	StatusBadSession         StatusCode = 400100
	StatusPreconditionFailed StatusCode = 400120
	StatusAlreadyExists      StatusCode = 400130
	StatusNotFound           StatusCode = 400140
	StatusSessionExpired     StatusCode = 400150
	StatusCancelled          StatusCode = 400160
	StatusUndetermined       StatusCode = 400170
	StatusUnsupported        StatusCode = 400180
	StatusSessionBusy        StatusCode = 400190
)

var statusNames = map[StatusCode]string{
	StatusUnspecified:        "STATUS_CODE_UNSPECIFIED",
	StatusSuccess:            "SUCCESS",
	StatusBadRequest:         "BAD_REQUEST",
	StatusUnauthorized:       "UNAUTHORIZED",
	StatusInternalError:      "INTERNAL_ERROR",
	StatusAborted:            "ABORTED",
	StatusUnavailable:        "UNAVAILABLE",
	StatusOverloaded:         "OVERLOADED",
	StatusSchemeError:        "SCHEME_ERROR",
	StatusGenericError:       "GENERIC_ERROR",
	StatusTimeout:            "TIMEOUT",
	StatusBadSession:         "BAD_SESSION",
	StatusPreconditionFailed: "PRECONDITION_FAILED",
	StatusAlreadyExists:      "ALREADY_EXISTS",
	StatusNotFound:           "NOT_FOUND",
	StatusSessionExpired:     "SESSION_EXPIRED",
	StatusCancelled:          "CANCELLED",
	StatusUndetermined:       "UNDETERMINED",
	StatusUnsupported:        "UNSUPPORTED",
	StatusSessionBusy:        "SESSION_BUSY",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", int32(c))
}

// Issue is a server diagnostic attached to a status
type Issue struct {
	Code    uint32
	Message string
}

// StatusError is returned when a server message carries a non-success status
type StatusError struct {
	Status StatusCode
	Issues []Issue
}

func (e *StatusError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("topic: server status %s", e.Status)
	}

	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("#%d %s", is.Code, is.Message))
	}
	return fmt.Sprintf("topic: server status %s: %s", e.Status, strings.Join(msgs, "; "))
}

// ServerMessageMetadata is embedded into every server message
type ServerMessageMetadata struct {
	Status StatusCode
	Issues []Issue
}

// StatusError returns nil for a successful status
func (m *ServerMessageMetadata) StatusError() error {
	if m.Status == StatusSuccess {
		return nil
	}
	return &StatusError{Status: m.Status, Issues: m.Issues}
}

// OffsetRange is the wire form of models.OffsetsRange
type OffsetRange struct {
	Start int64
	End   int64
}

func (r OffsetRange) Model() models.OffsetsRange {
	return models.OffsetsRange{Start: r.Start, End: r.End}
}

type MetadataItem = models.MetadataItem

// UpdateTokenRequest replaces the auth token of a live stream.
// It is valid on both writer and reader streams.
type UpdateTokenRequest struct {
	Token string
}

func (*UpdateTokenRequest) isWriterClientMessage() {}
func (*UpdateTokenRequest) isReaderClientMessage() {}

type UpdateTokenResponse struct {
	ServerMessageMetadata
}

func (*UpdateTokenResponse) isWriterServerMessage() {}
func (*UpdateTokenResponse) isReaderServerMessage() {}
