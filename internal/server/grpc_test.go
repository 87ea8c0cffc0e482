package server

import (
	"sort"
	"testing"

	"google.golang.org/grpc"

	healthhandler "collab-control-plane/backend/internal/health/handler"
	organizationservice "collab-control-plane/backend/internal/organization/service"
	projectservice "collab-control-plane/backend/internal/project/service"
	teamservice "collab-control-plane/backend/internal/team/service"
	userservice "collab-control-plane/backend/internal/user/service"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
	methods  map[string][]string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
	if m.methods == nil {
		m.methods = make(map[string][]string)
	}
	for _, md := range desc.Methods {
		m.methods[desc.ServiceName] = append(m.methods[desc.ServiceName], md.MethodName)
	}
}

func TestRegister_AllServices(t *testing.T) {
	reg := &mockServiceRegistrar{}
	register(reg, Deps{
		Projects:      &projectservice.Service{},
		Organizations: &organizationservice.Service{},
		Teams:         &teamservice.Service{},
		Users:         &userservice.Service{},
		Health:        healthhandler.NewServer(nil, nil, nil),
	})

	got := append([]string(nil), reg.services...)
	sort.Strings(got)
	want := append([]string{"grpc.health.v1.Health"}, ServiceNames...)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("services = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("services = %v, want %v", got, want)
			break
		}
	}
	if n := len(reg.methods["collab.project.v1.ProjectService"]); n != 7 {
		t.Errorf("ProjectService methods = %d, want 7", n)
	}
}

func TestRegister_SkipsNilServices(t *testing.T) {
	reg := &mockServiceRegistrar{}
	register(reg, Deps{Projects: &projectservice.Service{}})
	if len(reg.services) != 1 || reg.services[0] != "collab.project.v1.ProjectService" {
		t.Errorf("services = %v, want only ProjectService", reg.services)
	}
}

func TestPublicMethods(t *testing.T) {
	public := PublicMethods()
	for _, m := range []string{
		"/collab.user.v1.UserService/Register",
		"/collab.user.v1.UserService/Login",
		HealthCheckMethod,
	} {
		if !public[m] {
			t.Errorf("%s is not public", m)
		}
	}
	if public["/collab.project.v1.ProjectService/CreateProject"] {
		t.Error("CreateProject must require a token")
	}
}
