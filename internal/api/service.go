package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "portalchat.v1.Messaging"

// MessagingServer is the server API of the Messaging service.
type MessagingServer interface {
	LoadConversations(context.Context, *LoadConversationsRequest) (*LoadConversationsResponse, error)
	StartOrGetConversation(context.Context, *StartOrGetConversationRequest) (*ConversationResponse, error)
	StartConversation(context.Context, *StartConversationRequest) (*ConversationResponse, error)
	OpenConversation(context.Context, *OpenConversationRequest) (*ListMessagesResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	UnreadCount(context.Context, *UnreadCountRequest) (*UnreadCountResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	WatchEvents(*WatchEventsRequest, EventStream) error
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*Event) error
	Context() context.Context
}

// ServiceDesc describes the Messaging service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MessagingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("LoadConversations", MessagingServer.LoadConversations),
		unary("StartOrGetConversation", MessagingServer.StartOrGetConversation),
		unary("StartConversation", MessagingServer.StartConversation),
		unary("OpenConversation", MessagingServer.OpenConversation),
		unary("ListMessages", MessagingServer.ListMessages),
		unary("SendMessage", MessagingServer.SendMessage),
		unary("UnreadCount", MessagingServer.UnreadCount),
		unary("Status", MessagingServer.Status),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "portalchat/v1/messaging.proto",
}

// RegisterMessagingServer registers srv on s.
func RegisterMessagingServer(s grpc.ServiceRegistrar, srv MessagingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(MessagingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MessagingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MessagingServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

type eventServerStream struct {
	grpc.ServerStream
}

func (s *eventServerStream) Send(evt *Event) error {
	return s.ServerStream.SendMsg(evt)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MessagingServer).WatchEvents(in, &eventServerStream{stream})
}
