// Package services describes the auxiliary containers (MySQL, Postgres,
// Redis) a session can depend on and starts them ahead of the primary
// container.
package services

import (
	"strings"

	"github.com/strongdm/bubble/internal/configstore"
)

// Descriptor is everything needed to run one service.
type Descriptor struct {
	// Name is the short service name; it doubles as the network alias.
	Name  string
	Image string
	// Env is injected into the service container.
	Env []string
	// PrimaryEnv is injected into the primary container.
	PrimaryEnv []string
	// VolumePath, when set, receives a named volume for persistent data.
	VolumePath string
	Probe      []string
}

// Service is implemented by each supported service kind.
type Service interface {
	Describe() Descriptor
}

// MySQL runs the official mysql image.
type MySQL struct {
	configstore.Database
}

func (m MySQL) Describe() Descriptor {
	env := []string{
		"MYSQL_ROOT_PASSWORD=" + m.Password,
		"MYSQL_DATABASE=" + m.Database.Database,
	}
	// the image rejects MYSQL_USER=root
	if m.Username != "root" {
		env = append(env, "MYSQL_USER="+m.Username, "MYSQL_PASSWORD="+m.Password)
	}
	return Descriptor{
		Name:  "mysql",
		Image: "mysql:" + m.Version,
		Env:   env,
		PrimaryEnv: []string{
			"DB_HOST=mysql",
			"DB_PORT=3306",
			"DB_DATABASE=" + m.Database.Database,
			"DB_USERNAME=" + m.Username,
			"DB_PASSWORD=" + m.Password,
		},
		VolumePath: "/var/lib/mysql",
		Probe:      []string{"mysqladmin", "ping", "-h", "127.0.0.1", "--silent"},
	}
}

// Postgres runs the official postgres image.
type Postgres struct {
	configstore.Database
}

func (p Postgres) Describe() Descriptor {
	return Descriptor{
		Name:  "postgres",
		Image: "postgres:" + p.Version,
		Env: []string{
			"POSTGRES_USER=" + p.Username,
			"POSTGRES_PASSWORD=" + p.Password,
			"POSTGRES_DB=" + p.Database.Database,
		},
		PrimaryEnv: []string{
			"DB_HOST=postgres",
			"DB_PORT=5432",
			"DB_DATABASE=" + p.Database.Database,
			"DB_USERNAME=" + p.Username,
			"DB_PASSWORD=" + p.Password,
		},
		VolumePath: "/var/lib/postgresql/data",
		Probe:      []string{"pg_isready", "-U", p.Username},
	}
}

// Redis runs redis:alpine without persistence.
type Redis struct{}

func (Redis) Describe() Descriptor {
	return Descriptor{
		Name:       "redis",
		Image:      "redis:alpine",
		PrimaryEnv: []string{"REDIS_HOST=redis", "REDIS_PORT=6379"},
		Probe:      []string{"redis-cli", "ping"},
	}
}

// Collect returns the configured services in a fixed order: mysql, postgres,
// redis.
func Collect(cfg configstore.Config) []Service {
	var out []Service
	if cfg.Services.MySQL != nil {
		out = append(out, MySQL{Database: *cfg.Services.MySQL})
	}
	if cfg.Services.Postgres != nil {
		out = append(out, Postgres{Database: *cfg.Services.Postgres})
	}
	if cfg.RedisEnabled() {
		out = append(out, Redis{})
	}
	return out
}

// Describe maps services to their descriptors, preserving order.
func Describe(svcs []Service) []Descriptor {
	out := make([]Descriptor, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, s.Describe())
	}
	return out
}

// AggregateEnv merges every descriptor's PrimaryEnv. When two services set
// the same variable the later one wins.
func AggregateEnv(descs []Descriptor) []string {
	layers := make([]configstore.EnvLayer, 0, len(descs))
	for _, d := range descs {
		layers = append(layers, configstore.NewEnvLayer(d.PrimaryEnv))
	}
	return configstore.MergeEnvLayers(layers...)
}

// ContainerName returns "<prefix>-<project>-<service>".
func ContainerName(prefix, project, service string) string {
	return strings.Join([]string{prefix, project, service}, "-")
}

// VolumeName returns "<prefix>-<project>-<service>-data".
func VolumeName(prefix, project, service string) string {
	return ContainerName(prefix, project, service) + "-data"
}
