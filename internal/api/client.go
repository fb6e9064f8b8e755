package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) LoadConversations(ctx context.Context, req *LoadConversationsRequest) (*LoadConversationsResponse, error) {
	out := new(LoadConversationsResponse)
	return out, c.conn.Invoke(ctx, fullMethod("LoadConversations"), req, out)
}

func (c *Client) StartOrGetConversation(ctx context.Context, req *StartOrGetConversationRequest) (*ConversationResponse, error) {
	out := new(ConversationResponse)
	return out, c.conn.Invoke(ctx, fullMethod("StartOrGetConversation"), req, out)
}

func (c *Client) StartConversation(ctx context.Context, req *StartConversationRequest) (*ConversationResponse, error) {
	out := new(ConversationResponse)
	return out, c.conn.Invoke(ctx, fullMethod("StartConversation"), req, out)
}

func (c *Client) OpenConversation(ctx context.Context, req *OpenConversationRequest) (*ListMessagesResponse, error) {
	out := new(ListMessagesResponse)
	return out, c.conn.Invoke(ctx, fullMethod("OpenConversation"), req, out)
}

func (c *Client) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	out := new(ListMessagesResponse)
	return out, c.conn.Invoke(ctx, fullMethod("ListMessages"), req, out)
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	out := new(SendMessageResponse)
	return out, c.conn.Invoke(ctx, fullMethod("SendMessage"), req, out)
}

func (c *Client) UnreadCount(ctx context.Context, req *UnreadCountRequest) (*UnreadCountResponse, error) {
	out := new(UnreadCountResponse)
	return out, c.conn.Invoke(ctx, fullMethod("UnreadCount"), req, out)
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	return out, c.conn.Invoke(ctx, fullMethod("Status"), &StatusRequest{}, out)
}

// WatchEvents calls fn for every event until ctx is cancelled, the stream
// ends or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, req *WatchEventsRequest, fn func(*Event) error) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("WatchEvents"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
