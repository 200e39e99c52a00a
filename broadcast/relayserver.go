package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

var errMissingClientID = errors.New("missing client_id")

// relayFrame is one envelope in flight between relay clients.
type relayFrame struct {
	sender string
	env    Envelope
}

// RelayServer fans published envelopes out to every subscribed client except
// the sender. One server instance bridges any number of processes.
type RelayServer struct {
	logger  *slog.Logger
	streams map[string]chan relayFrame
	mu      sync.Mutex
}

// NewRelayServer creates a RelayServer logging through logger; nil means the
// default logger.
func NewRelayServer(logger *slog.Logger) *RelayServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayServer{
		logger:  logger,
		streams: make(map[string]chan relayFrame),
	}
}

// Routes mounts the Connect handlers on a chi router.
func (s *RelayServer) Routes(r chi.Router) {
	r.Handle(ProcedurePublish, connect.NewUnaryHandler(ProcedurePublish, s.handlePublish))
	r.Handle(ProcedureSubscribe, connect.NewServerStreamHandler(ProcedureSubscribe, s.handleSubscribe))
}

// Handler returns a standalone http.Handler serving the relay.
func (s *RelayServer) Handler() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

func (s *RelayServer) handlePublish(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	sender, env := envelopeFromStruct(req.Msg)

	s.mu.Lock()
	targets := make([]chan relayFrame, 0, len(s.streams))
	for clientID, queue := range s.streams {
		if clientID != sender {
			targets = append(targets, queue)
		}
	}
	s.mu.Unlock()

	delivered := 0
	for _, queue := range targets {
		select {
		case queue <- relayFrame{sender: sender, env: env}:
			delivered++
		default:
			// Slow consumer: drop rather than stall every other client.
		}
	}

	s.logger.DebugContext(
		ctx,
		"relay publish",
		slog.String("channel", env.Type),
		slog.Int("recipients", len(targets)),
		slog.Int("delivered", delivered),
	)

	return connect.NewResponse(&structpb.Struct{}), nil
}

func (s *RelayServer) handleSubscribe(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	clientID := req.Msg.GetFields()["client_id"].GetStringValue()
	if clientID == "" {
		return connect.NewError(connect.CodeInvalidArgument, errMissingClientID)
	}

	queue := make(chan relayFrame, 16)
	s.mu.Lock()
	s.streams[clientID] = queue
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.streams, clientID)
		s.mu.Unlock()
	}()

	s.logger.DebugContext(ctx, "relay client subscribed", slog.String("client_id", clientID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-queue:
			msg, err := envelopeToStruct(frame.sender, frame.env)
			if err != nil {
				s.logger.WarnContext(
					ctx,
					"failed to encode relay frame",
					slog.String("channel", frame.env.Type),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
