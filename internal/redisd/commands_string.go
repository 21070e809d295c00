package redisd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flonle/goredis/internal/resp"
	"github.com/flonle/goredis/internal/store"
)

func cmdPing(s *session, args []string) ([]byte, bool) {
	return []byte("+PONG\r\n"), false
}

func cmdEcho(s *session, args []string) ([]byte, bool) {
	var e resp.Encoder
	e.WriteBulkString(args[1])
	return e.Bytes(), false
}

func cmdGet(s *session, args []string) ([]byte, bool) {
	var e resp.Encoder
	value, ok := s.srv.Keyspace().GetString(args[1])
	if !ok {
		e.WriteNullBulk()
		return e.Bytes(), false
	}
	e.WriteBulkString(value)
	return e.Bytes(), false
}

// cmdSet implements SET key value [PX ms]. Any other trailing option is a
// protocol error, matching the distilled spec's scope (only PX is named).
func cmdSet(s *session, args []string) ([]byte, bool) {
	key, value := args[1], args[2]

	var expiresAt int64
	if len(args) > 3 {
		if len(args) != 5 || !strings.EqualFold(args[3], "PX") {
			return errorReply("ERR syntax error"), false
		}
		ms, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil || ms < 0 {
			return errorReply("ERR PX value is not an integer or out of range"), false
		}
		expiresAt = time.Now().UnixMilli() + ms
	}

	s.srv.Keyspace().SetString(key, value, expiresAt)
	return simpleOK(), true
}

func cmdIncr(s *session, args []string) ([]byte, bool) {
	n, err := s.srv.Keyspace().Incr(args[1])
	if err != nil {
		return errorReply(wrongTypeOrMessage(err)), false
	}
	var e resp.Encoder
	e.WriteInteger(n)
	return e.Bytes(), true
}

// cmdKeys implements KEYS *; pattern matching beyond "*" is out of scope.
func cmdKeys(s *session, args []string) ([]byte, bool) {
	var e resp.Encoder
	keys := s.srv.Keyspace().Keys()
	e.WriteArrayHeader(len(keys))
	for _, k := range keys {
		e.WriteBulkString(k)
	}
	return e.Bytes(), false
}

func cmdType(s *session, args []string) ([]byte, bool) {
	return []byte("+" + s.srv.Keyspace().TypeName(args[1]) + "\r\n"), false
}

// cmdConfig implements CONFIG GET <param> for dir, dbfilename and port.
func cmdConfig(s *session, args []string) ([]byte, bool) {
	if len(args) < 3 || !strings.EqualFold(args[1], "GET") {
		return errorReply("ERR unsupported CONFIG subcommand"), false
	}

	cfg := s.srv.Config()
	var value string
	switch strings.ToLower(args[2]) {
	case "dir":
		value = cfg.Dir
	case "dbfilename":
		value = cfg.DBFilename
	case "port":
		value = strconv.Itoa(cfg.Port)
	default:
		var e resp.Encoder
		e.WriteArrayHeader(0)
		return e.Bytes(), false
	}

	var e resp.Encoder
	e.WriteArrayHeader(2)
	e.WriteBulkString(args[2])
	e.WriteBulkString(value)
	return e.Bytes(), false
}

// cmdInfo implements INFO replication — the only section this server tracks.
func cmdInfo(s *session, args []string) ([]byte, bool) {
	role := "master"
	if s.srv.IsReplica() {
		role = "slave"
	}

	body := fmt.Sprintf(
		"# Replication\r\nrole:%s\r\nconnected_slaves:%d\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		role, s.srv.Registry().Count(), s.srv.ReplID(), s.srv.Offset(),
	)

	var e resp.Encoder
	e.WriteBulkString(body)
	return e.Bytes(), false
}

func wrongTypeOrMessage(err error) string {
	if err == store.ErrWrongType {
		return err.Error()
	}
	return "ERR " + err.Error()
}
