package discovery

import "testing"

func TestDefaultHealthAddr(t *testing.T) {
	cases := map[string]string{
		ServiceMissions: "missions:8082",
		ServiceWorker:   "worker:8089",
		ServiceMCP:      "",
		"unknown":       "",
	}
	for service, want := range cases {
		if got := DefaultHealthAddr(service); got != want {
			t.Fatalf("DefaultHealthAddr(%q) = %q, want %q", service, got, want)
		}
	}
}

func TestDefaultHTTPAddr(t *testing.T) {
	cases := map[string]string{
		ServiceMissions: "missions:8080",
		ServiceMCP:      "mcp:8081",
		" mcp ":         "mcp:8081",
		ServiceWorker:   "",
	}
	for service, want := range cases {
		if got := DefaultHTTPAddr(service); got != want {
			t.Fatalf("DefaultHTTPAddr(%q) = %q, want %q", service, got, want)
		}
	}
}

func TestResolveHealthTarget(t *testing.T) {
	tests := []struct {
		target      string
		wantAddr    string
		wantService string
	}{
		{target: "missions", wantAddr: "missions:8082", wantService: "missions.http"},
		{target: "worker", wantAddr: "worker:8089", wantService: "worker.sweep"},
		{target: "127.0.0.1:9000", wantAddr: "127.0.0.1:9000", wantService: ""},
		{target: "nowhere", wantAddr: "", wantService: ""},
	}
	for _, tc := range tests {
		addr, service := ResolveHealthTarget(tc.target)
		if addr != tc.wantAddr || service != tc.wantService {
			t.Fatalf("ResolveHealthTarget(%q) = (%q, %q), want (%q, %q)", tc.target, addr, service, tc.wantAddr, tc.wantService)
		}
	}
}
