package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"
)

// Connect procedures served by the relay. Declared by hand: the wire types
// are well-known protobuf structs, so no generated schema is involved.
const (
	ProcedurePublish   = "/statekit.relay.v1.RelayService/Publish"
	ProcedureSubscribe = "/statekit.relay.v1.RelayService/Subscribe"
)

// envelopeToStruct encodes an envelope plus its sender into the protobuf
// Struct carried on the wire.
func envelopeToStruct(sender string, env Envelope) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":     env.ID,
		"type":   env.Type,
		"data":   string(env.Data),
		"sender": sender,
	})
}

// envelopeFromStruct is the inverse of envelopeToStruct.
func envelopeFromStruct(msg *structpb.Struct) (sender string, env Envelope) {
	fields := msg.GetFields()
	return fields["sender"].GetStringValue(), Envelope{
		ID:   fields["id"].GetStringValue(),
		Type: fields["type"].GetStringValue(),
		Data: json.RawMessage(fields["data"].GetStringValue()),
	}
}

// RelayClient is a Bus whose far side is a RelayServer, extending broadcast
// across process boundaries. Local subscriptions are served by an inner
// MemoryBus; remote envelopes arrive over a Connect server stream and feed
// the same inner bus, whose duplicate guard keeps propagation to one hop.
type RelayClient struct {
	id        string
	inner     *MemoryBus
	publish   *connect.Client[structpb.Struct, structpb.Struct]
	subscribe *connect.Client[structpb.Struct, structpb.Struct]

	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewRelayClient creates a relay-backed Bus talking to the RelayServer at
// baseURL. The stream to the server is opened on the first Subscribe call.
func NewRelayClient(httpClient connect.HTTPClient, baseURL string) *RelayClient {
	return &RelayClient{
		id:        uuid.NewString(),
		inner:     NewMemoryBus(),
		publish:   connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ProcedurePublish),
		subscribe: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ProcedureSubscribe),
	}
}

func (c *RelayClient) Publish(ctx context.Context, senderID string, env Envelope) error {
	if err := c.inner.Publish(ctx, senderID, env); err != nil {
		return err
	}

	msg, err := envelopeToStruct(c.id, env)
	if err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	if _, err := c.publish.CallUnary(ctx, connect.NewRequest(msg)); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

func (c *RelayClient) Subscribe(handler Handler) *Subscription {
	c.ensureStream()
	return c.inner.Subscribe(handler)
}

// Close cancels the server stream and detaches all local subscriptions.
func (c *RelayClient) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	return c.inner.Close()
}

// ensureStream opens the receive stream once.
func (c *RelayClient) ensureStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.receiveLoop(ctx)
}

func (c *RelayClient) receiveLoop(ctx context.Context) {
	req, err := structpb.NewStruct(map[string]any{"client_id": c.id})
	if err != nil {
		return
	}

	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(req))
	if err != nil {
		return
	}
	defer stream.Close()

	for stream.Receive() {
		sender, env := envelopeFromStruct(stream.Msg())
		if sender == c.id {
			continue
		}
		// Remote envelopes fan out to every local subscription.
		c.inner.Publish(ctx, "", env)
	}
}
