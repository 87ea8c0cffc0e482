// Package rpc registers hand-declared unary gRPC services whose requests and replies are
// google.protobuf.Struct messages, and renders results and errors the same way for every service.
//
// A reply is {"statusCode": <int>, "message": <string>, "data": <payload>}. A failure is a gRPC
// status whose message is the client-facing apperr message, with an ErrorInfo detail carrying the
// apperr code and the HTTP-equivalent status code.
package rpc

import (
	"context"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/platform/envelope"
)

// ErrorDomain is the ErrorInfo domain attached to failures.
const ErrorDomain = "collab-control-plane"

// HandlerFunc handles one unary method.
type HandlerFunc func(ctx context.Context, req *structpb.Struct) (*envelope.Response, error)

// Method is one unary method of a service.
type Method struct {
	Name    string
	Handler HandlerFunc
}

// Register adds service to s. Every method decodes a Struct, runs through the server's
// interceptor chain and replies with Reply or Error.
func Register(s grpc.ServiceRegistrar, service string, methods ...Method) {
	desc := grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*interface{})(nil),
		Metadata:    "hand-declared",
	}
	for _, m := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    methodHandler(FullMethod(service, m.Name), m.Handler),
		})
	}
	s.RegisterService(&desc, struct{}{})
}

// FullMethod returns the gRPC full method name, e.g. /collab.project.v1.ProjectService/AddMember.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

func methodHandler(fullMethod string, h HandlerFunc) grpc.MethodHandler {
	call := func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := h(ctx, req.(*structpb.Struct))
		if err != nil {
			return nil, Error(err)
		}
		return Reply(resp)
	}
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, call)
	}
}

// Reply renders a successful envelope.
func Reply(resp *envelope.Response) (*structpb.Struct, error) {
	data, err := structpb.NewValue(resp.Payload)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"statusCode": structpb.NewNumberValue(float64(resp.StatusCode)),
		"message":    structpb.NewStringValue(resp.Message),
		"data":       data,
	}}, nil
}

// Error converts err into a gRPC status. Errors that already are statuses pass through.
func Error(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && apperr.CodeOf(err) == "" {
		return err
	}
	f := envelope.FromError(err)
	st := status.New(Code(err), f.Message)
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = string(apperr.CodeInternal)
	}
	withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   strings.ToUpper(code),
		Domain:   ErrorDomain,
		Metadata: map[string]string{"statusCode": strconv.Itoa(f.StatusCode)},
	})
	if derr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// Code maps the apperr taxonomy onto gRPC codes.
func Code(err error) codes.Code {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return codes.InvalidArgument
	case apperr.CodeDuplicateMembership, apperr.CodeDuplicateTeam:
		return codes.AlreadyExists
	case apperr.CodeNotFound, apperr.CodeNotFoundInOrg:
		return codes.NotFound
	case apperr.CodeForbidden:
		return codes.PermissionDenied
	case apperr.CodeUnauthorized:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

// String returns the string field key of req, or "" if it is absent or not a string.
func String(req *structpb.Struct, key string) string {
	if req == nil {
		return ""
	}
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}

// Strings converts ids into a list value usable in a payload.
func Strings(ids []string) []interface{} {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}

// Time formats t for payloads. The zero time renders as "".
func Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
