package rpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/platform/envelope"
)

const testService = "collab.test.v1.EchoService"

func dial(t *testing.T, opts []grpc.ServerOption, methods ...Method) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	Register(srv, testService, methods...)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRegister_RoundTrip(t *testing.T) {
	var seen string
	intercept := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		seen = info.FullMethod
		return handler(ctx, req)
	}
	conn := dial(t, []grpc.ServerOption{grpc.UnaryInterceptor(intercept)}, Method{
		Name: "Echo",
		Handler: func(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
			return envelope.OK(map[string]interface{}{"name": String(req, "name")}, "echoed"), nil
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]interface{}{"name": "Alpha"})
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(testService, "Echo"), req, out); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	m := out.AsMap()
	if m["statusCode"] != float64(200) || m["message"] != "echoed" {
		t.Errorf("reply = %v", m)
	}
	if data, _ := m["data"].(map[string]interface{}); data["name"] != "Alpha" {
		t.Errorf("data = %v", m["data"])
	}
	if seen != "/collab.test.v1.EchoService/Echo" {
		t.Errorf("interceptor saw %q", seen)
	}
}

func TestRegister_ErrorCarriesCodeAndStatus(t *testing.T) {
	conn := dial(t, nil, Method{
		Name: "Fail",
		Handler: func(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
			return nil, apperr.Forbidden("Only project owner can delete the project.")
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Invoke(ctx, FullMethod(testService, "Fail"), &structpb.Struct{}, new(structpb.Struct))
	st := status.Convert(err)
	if st.Code() != codes.PermissionDenied {
		t.Fatalf("code = %v, want PermissionDenied", st.Code())
	}
	if st.Message() != "Only project owner can delete the project." {
		t.Errorf("message = %q", st.Message())
	}
	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	if info == nil {
		t.Fatal("missing ErrorInfo detail")
	}
	if info.GetReason() != "FORBIDDEN" || info.GetMetadata()["statusCode"] != "403" {
		t.Errorf("ErrorInfo = %v", info)
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{apperr.Validation("x"), codes.InvalidArgument},
		{apperr.DuplicateMembership("x"), codes.AlreadyExists},
		{apperr.DuplicateTeam("x"), codes.AlreadyExists},
		{apperr.NotFound("x"), codes.NotFound},
		{apperr.NotFoundInOrg("x"), codes.NotFound},
		{apperr.Forbidden("x"), codes.PermissionDenied},
		{apperr.Unauthorized("x"), codes.Unauthenticated},
		{apperr.CascadeFailed("add member", errors.New("disk")), codes.Internal},
		{errors.New("plain"), codes.Internal},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestError_HidesInternalCause(t *testing.T) {
	err := Error(apperr.CascadeFailed("delete project", errors.New("pq: connection reset")))
	st := status.Convert(err)
	if st.Message() != "Failed to delete project due to server error, please try again later" {
		t.Errorf("message = %q", st.Message())
	}
	st = status.Convert(Error(errors.New("pq: connection reset")))
	if st.Message() != "internal server error" {
		t.Errorf("plain error message = %q", st.Message())
	}
	passthrough := status.Error(codes.Unauthenticated, "missing or invalid authorization")
	if got := Error(passthrough); status.Code(got) != codes.Unauthenticated {
		t.Errorf("status error was rewritten: %v", got)
	}
}

func TestString(t *testing.T) {
	req, _ := structpb.NewStruct(map[string]interface{}{"name": "Alpha", "count": 3})
	if got := String(req, "name"); got != "Alpha" {
		t.Errorf("name = %q", got)
	}
	if got := String(req, "count"); got != "" {
		t.Errorf("non-string = %q, want empty", got)
	}
	if got := String(nil, "name"); got != "" {
		t.Errorf("nil struct = %q, want empty", got)
	}
}
