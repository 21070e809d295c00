// Package config parses the server's CLI flags into a typed configuration,
// grounded on the original Python implementation's RedisServerConfig
// (defaults, then override from flags, then validate --replicaof's
// two-token shape) but built on the standard flag package, as the teacher
// does, rather than argparse.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// ReplicaOf names the upstream master this server should replicate from.
type ReplicaOf struct {
	Host string
	Port int
}

// Config holds every CLI-configurable setting this server understands.
type Config struct {
	Host       string
	Port       int
	Dir        string
	DBFilename string
	ReplicaOf  *ReplicaOf // nil when running as a master
}

// Default returns the configuration a bare invocation (no flags) produces.
func Default() Config {
	return Config{
		Host: "localhost",
		Port: 6379,
	}
}

// Parse parses args (excluding the program name, i.e. os.Args[1:]) into a
// Config. Unknown flags are an error, per flag.ContinueOnError.
func Parse(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("goredis", flag.ContinueOnError)
	fs.StringVar(&cfg.Dir, "dir", "", "directory containing the RDB file")
	fs.StringVar(&cfg.DBFilename, "dbfilename", "", "name of the RDB file")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	replicaof := fs.String("replicaof", "", `upstream master, as "HOST PORT"`)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *replicaof != "" {
		r, err := parseReplicaOf(*replicaof)
		if err != nil {
			return Config{}, err
		}
		cfg.ReplicaOf = r
	}

	return cfg, nil
}

func parseReplicaOf(s string) (*ReplicaOf, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return nil, fmt.Errorf(`--replicaof must be in the format "HOST PORT", got %q`, s)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("--replicaof: bad port %q: %w", parts[1], err)
	}
	return &ReplicaOf{Host: parts[0], Port: port}, nil
}

// IsReplica reports whether this config describes a replica (--replicaof
// was supplied).
func (c Config) IsReplica() bool {
	return c.ReplicaOf != nil
}

// Addr is the host:port this server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
