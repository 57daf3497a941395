// Package discovery centralizes the in-network addresses of the missions services.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceMissions is the missions HTTP API identity.
	ServiceMissions = "missions"
	// ServiceMCP is the MCP HTTP service identity.
	ServiceMCP = "mcp"
	// ServiceWorker is the sweep worker identity.
	ServiceWorker = "worker"
)

var healthPorts = map[string]int{
	ServiceMissions: 8082,
	ServiceWorker:   8089,
}

var httpPorts = map[string]int{
	ServiceMissions: 8080,
	ServiceMCP:      8081,
}

// healthServices names the component each service reports on its gRPC
// health endpoint.
var healthServices = map[string]string{
	ServiceMissions: "missions.http",
	ServiceWorker:   "worker.sweep",
}

// DefaultHealthAddr returns the canonical gRPC health address for a service.
func DefaultHealthAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), healthPorts)
}

// DefaultHTTPAddr returns the canonical in-network HTTP address for a service.
func DefaultHTTPAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), httpPorts)
}

// HealthService returns the health check name a service reports, or "".
func HealthService(service string) string {
	return healthServices[strings.TrimSpace(service)]
}

// ResolveHealthTarget turns a service identity or host:port into a probe
// address and health service name. Unknown names without a port resolve to
// an empty address.
func ResolveHealthTarget(target string) (addr, service string) {
	target = strings.TrimSpace(target)
	if strings.Contains(target, ":") {
		return target, ""
	}
	return DefaultHealthAddr(target), HealthService(target)
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return service + ":" + strconv.Itoa(port)
}
