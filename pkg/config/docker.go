package config

import (
	"net"
	"os"
	"sync"
)

// DockerHostGateway is the name Docker Desktop and --add-host=host-gateway
// give the host machine from inside a container.
const DockerHostGateway = "host.docker.internal"

var dockerEnvPath = "/.dockerenv"

var inDocker = sync.OnceValue(func() bool {
	_, err := os.Stat(dockerEnvPath)
	return err == nil
})

// IsRunningInDocker reports whether the process runs inside a container.
func IsRunningInDocker() bool {
	return inDocker()
}

// ResolveHostForDocker rewrites loopback hosts to DockerHostGateway when
// running inside a container. The cache database, redis and the query
// datasource are all resolved through it.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker())
}

func resolveHost(host string, containerized bool) string {
	if !containerized || !isLoopback(host) {
		return host
	}
	return DockerHostGateway
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
