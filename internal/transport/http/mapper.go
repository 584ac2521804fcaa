package http

import (
	"net/http"

	"github.com/vovakirdan/ledgerchat/internal/core"
	"github.com/vovakirdan/ledgerchat/internal/proto"
)

func sessionToProto(s core.SessionState) proto.Session {
	out := proto.Session{
		Status:  s.Status.String(),
		Account: string(s.Account),
	}
	if s.Reason != nil {
		out.Reason = s.Reason.Error()
	}
	return out
}

func messagesToProto(records []core.MessageRecord) []proto.Message {
	out := make([]proto.Message, 0, len(records))
	for _, r := range records {
		out = append(out, proto.Message{
			Sender:     string(r.Sender),
			Receiver:   string(r.Receiver),
			ContentRef: string(r.ContentRef),
			TS:         r.Timestamp,
		})
	}
	return out
}

func snapshotToProto(s core.Snapshot) proto.Snapshot {
	pending := make([]proto.Pending, 0, len(s.Pending))
	for _, p := range s.Pending {
		pending = append(pending, proto.Pending{
			ID:        p.ID,
			Receiver:  string(p.Receiver),
			Message:   p.Message,
			Stage:     string(p.Stage),
			StartedAt: p.StartedAt.Unix(),
		})
	}
	return proto.Snapshot{
		Session:  sessionToProto(s.Session),
		Messages: messagesToProto(s.Messages),
		Pending:  pending,
	}
}

// errorToProto maps an error kind to an HTTP status and body.
func errorToProto(err error) (int, proto.Error) {
	kind := core.KindOf(err)
	body := proto.Error{
		Code:  string(kind),
		Msg:   err.Error(),
		Stage: string(core.StageOf(err)),
	}

	switch kind {
	case core.KindInvalidInput, core.KindInvalidReceiver:
		return http.StatusBadRequest, body
	case core.KindNotConnected:
		return http.StatusConflict, body
	case core.KindNoProvider:
		return http.StatusServiceUnavailable, body
	case core.KindStoreUnavailable, core.KindEncodingError, core.KindSubmissionRejected,
		core.KindTransactionReverted, core.KindReadError:
		return http.StatusBadGateway, body
	case core.KindProviderTimeout:
		return http.StatusGatewayTimeout, body
	default:
		body.Code = "internal"
		return http.StatusInternalServerError, body
	}
}
