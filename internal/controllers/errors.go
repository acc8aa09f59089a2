package controllers

import (
	"context"
	"errors"

	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 对外稳定的错误原因。
const (
	ReasonInvalidVideoID    = "INVALID_VIDEO_ID"
	ReasonInvalidSessionID  = "INVALID_SESSION_ID"
	ReasonInvalidArgument   = "INVALID_ARGUMENT"
	ReasonVideoInFlight     = "VIDEO_IN_FLIGHT"
	ReasonAlreadySubmitted  = "VIDEO_ALREADY_SUBMITTED"
	ReasonTakeawaysNotFound = "TAKEAWAYS_NOT_FOUND"
	ReasonSessionNotFound   = "SESSION_NOT_FOUND"
	ReasonTimeout           = "DEADLINE_EXCEEDED"
	ReasonStoreUnavailable  = "STORE_UNAVAILABLE"
	ReasonInternal          = "INTERNAL"
)

func mapServiceError(err error) error {
	if err == nil {
		return nil
	}
	if se := new(kerrors.Error); errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, services.ErrInvalidVideoID):
		return kerrors.BadRequest(ReasonInvalidVideoID, "video id must be an 11-character YouTube id or watch url").WithCause(err)
	case errors.Is(err, services.ErrInvalidSessionID):
		return kerrors.BadRequest(ReasonInvalidSessionID, "session id required").WithCause(err)
	case errors.Is(err, services.ErrVideoInFlight):
		return kerrors.Conflict(ReasonVideoInFlight, "video is already being processed").WithCause(err)
	case errors.Is(err, services.ErrAlreadySubmitted):
		return kerrors.Conflict(ReasonAlreadySubmitted, "video already submitted in this session; use forceRegenerate to retry").WithCause(err)
	case errors.Is(err, services.ErrSessionNotFound):
		return kerrors.NotFound(ReasonSessionNotFound, "session not found").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return kerrors.GatewayTimeout(ReasonTimeout, "request timed out").WithCause(err)
	default:
		return kerrors.InternalServer(ReasonInternal, "internal error").WithCause(err)
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return kerrors.GatewayTimeout(ReasonTimeout, "store timed out").WithCause(err)
	}
	return kerrors.ServiceUnavailable(ReasonStoreUnavailable, "takeaway store unavailable").WithCause(err)
}
