package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/valuestore/pkg/commsutil"
	"github.com/morezero/valuestore/pkg/documents"
)

const logPrefix = "router:router"

// Method names.
const (
	MethodPut          = "put"
	MethodGet          = "get"
	MethodDelete       = "delete"
	MethodList         = "list"
	MethodDescribeType = "describeType"
	MethodResolveType  = "resolveType"
	MethodHealth       = "health"
)

// DocumentService is the part of *documents.Service the router calls.
type DocumentService interface {
	Put(ctx context.Context, input *documents.PutInput, userID string) (*documents.PutOutput, error)
	Get(ctx context.Context, input *documents.GetInput) (*documents.GetOutput, error)
	Delete(ctx context.Context, input *documents.DeleteInput, userID string) (*documents.DeleteOutput, error)
	List(ctx context.Context, input *documents.ListInput) (*documents.ListOutput, error)
	DescribeType(ctx context.Context, input *documents.DescribeTypeInput) (*documents.DescribeTypeOutput, error)
	ResolveType(ctx context.Context, input *documents.ResolveTypeInput) (*documents.ResolveTypeOutput, error)
	Health(ctx context.Context) *documents.HealthOutput
}

var _ DocumentService = (*documents.Service)(nil)

// Router routes COMMS requests to document service methods.
type Router struct {
	svc DocumentService
}

// NewRouter creates a new Router.
func NewRouter(svc DocumentService) *Router {
	return &Router{svc: svc}
}

// Dispatch routes a request to the matching service method and returns a response.
func (r *Router) Dispatch(ctx context.Context, req *Request) *Response {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	userID := "system"
	if req.Ctx != nil && req.Ctx.UserID != "" {
		userID = req.Ctx.UserID
	}

	switch req.Method {
	case MethodPut:
		return handle(ctx, req, func(ctx context.Context, in *documents.PutInput) (any, error) {
			return r.svc.Put(ctx, in, userID)
		})
	case MethodGet:
		return handle(ctx, req, func(ctx context.Context, in *documents.GetInput) (any, error) {
			return r.svc.Get(ctx, in)
		})
	case MethodDelete:
		return handle(ctx, req, func(ctx context.Context, in *documents.DeleteInput) (any, error) {
			return r.svc.Delete(ctx, in, userID)
		})
	case MethodList:
		return handle(ctx, req, func(ctx context.Context, in *documents.ListInput) (any, error) {
			return r.svc.List(ctx, in)
		})
	case MethodDescribeType:
		return handle(ctx, req, func(ctx context.Context, in *documents.DescribeTypeInput) (any, error) {
			return r.svc.DescribeType(ctx, in)
		})
	case MethodResolveType:
		return handle(ctx, req, func(ctx context.Context, in *documents.ResolveTypeInput) (any, error) {
			return r.svc.ResolveType(ctx, in)
		})
	case MethodHealth:
		return &Response{ID: req.ID, Ok: true, Result: r.svc.Health(ctx)}
	default:
		return errorResponse(req.ID, "METHOD_NOT_FOUND", fmt.Sprintf("Unknown method: %s", req.Method), false)
	}
}

// handle decodes the params into a new I and calls fn with it.
func handle[I any](ctx context.Context, req *Request, fn func(context.Context, *I) (any, error)) *Response {
	var input I
	if err := commsutil.DecodeParams(req.Params, &input); err != nil {
		return errorResponse(req.ID, documents.CodeInvalidArgument, fmt.Sprintf("Failed to parse %s params: %v", req.Method, err), false)
	}
	result, err := fn(ctx, &input)
	if err != nil {
		return serviceErrorToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: result}
}

// Deadline returns the request timeout: the caller's deadline or timeout
// when it is sooner than def, otherwise def.
func Deadline(req *Request, now time.Time, def time.Duration) time.Duration {
	timeout := def
	if req.Ctx == nil {
		return timeout
	}
	if req.Ctx.TimeoutMs > 0 {
		if d := time.Duration(req.Ctx.TimeoutMs) * time.Millisecond; d < timeout {
			timeout = d
		}
	}
	if req.Ctx.DeadlineMs > 0 {
		if d := time.UnixMilli(req.Ctx.DeadlineMs).Sub(now); d < timeout {
			timeout = d
		}
	}
	return timeout
}

// --- helpers ---

func errorResponse(id, code, message string, retryable bool) *Response {
	return &Response{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

func serviceErrorToResponse(id string, err error) *Response {
	var svcErr *documents.ServiceError
	if errors.As(err, &svcErr) {
		return &Response{
			ID: id,
			Ok: false,
			Error: &ErrorDetail{
				Code:      svcErr.Code,
				Message:   svcErr.Message,
				Details:   svcErr.Details,
				Retryable: svcErr.Code == documents.CodeInternal,
			},
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errorResponse(id, "TIMEOUT", "Request deadline exceeded", true)
	}
	return errorResponse(id, documents.CodeInternal, err.Error(), true)
}
