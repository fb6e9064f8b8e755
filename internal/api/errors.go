package api

import (
	"errors"

	"github.com/matheus3301/portalchat/internal/chat"
	"github.com/matheus3301/portalchat/internal/messaging"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ErrRateLimited is returned when a viewer sends faster than allowed.
var ErrRateLimited = errors.New("send rate exceeded")

// toStatus maps engine errors to gRPC status errors.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, messaging.ErrNoViewer):
		code = codes.FailedPrecondition
	case errors.Is(err, messaging.ErrConversationNotFound):
		code = codes.NotFound
	case errors.Is(err, messaging.ErrNotParticipant):
		code = codes.PermissionDenied
	case errors.Is(err, chat.ErrTooFewParticipants),
		errors.Is(err, chat.ErrInvalidUser),
		errors.Is(err, chat.ErrBlankContent):
		code = codes.InvalidArgument
	case errors.Is(err, messaging.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, ErrRateLimited):
		code = codes.ResourceExhausted
	default:
		code = codes.Internal
	}
	return grpcstatus.Error(code, err.Error())
}
