package redisd

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/flonle/goredis/internal/replication"
	"github.com/flonle/goredis/internal/resp"
)

// session is one connection's state: its decoder, its
// transaction queue, and — if it was promoted by a successful PSYNC — the
// replica handle the registry tracks it under. Adapted from the teacher's
// Session (one bufio.Reader per connection, one goroutine per connection).
type session struct {
	srv  *Server
	conn net.Conn
	dec  *resp.Decoder

	queued  bool
	pending [][]string

	replica *replication.ReplicaHandle
}

func newSession(srv *Server, conn net.Conn) *session {
	return &session{
		srv:  srv,
		conn: conn,
		dec:  resp.NewDecoder(bufio.NewReader(conn)),
	}
}

func (s *session) run(ctx context.Context) {
	defer func() {
		if s.replica != nil {
			s.srv.Registry().Unregister(s.replica.ID)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		args, err := s.dec.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.srv.log.Debugw("connection closed", "addr", s.conn.RemoteAddr(), "error", err)
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		// A replica's socket only ever sends REPLCONF ACK back; it gets no reply.
		if s.replica != nil && strings.EqualFold(args[0], "REPLCONF") {
			s.handleReplicaAck(args)
			continue
		}

		reply := s.dispatch(args)
		if reply == nil {
			continue
		}
		if _, err := s.conn.Write(reply); err != nil {
			s.srv.log.Debugw("write failed", "addr", s.conn.RemoteAddr(), "error", err)
			return
		}
	}
}

func (s *session) handleReplicaAck(args []string) {
	if len(args) >= 3 && strings.EqualFold(args[1], "ACK") {
		offset, err := parseInt64(args[2])
		if err == nil {
			s.replica.SetAck(offset)
		}
	}
}
