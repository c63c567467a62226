// Package server accepts customer connections and hands each one to
// a dedicated session handler, bounding how many sessions may be
// served concurrently.
package server

import (
	"fmt"
	"net"

	"github.com/baristanet/cafe/go/pipeline"
	"github.com/baristanet/cafe/go/session"
	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/task"
)

// Config parameterizes a Server.
type Config struct {
	// Port to listen on. Port 0 binds an ephemeral port.
	Port int
	// MaxSessions bounds concurrently served customer sessions.
	// Excess connections are accepted but wait for a free slot.
	MaxSessions int
}

// Validate returns an error if the Config is malformed.
func (cfg Config) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port %d is out of range", cfg.Port)
	}
	if cfg.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive (got %d)", cfg.MaxSessions)
	}
	return nil
}

// Server is the cafe's connection acceptor.
type Server struct {
	pipe     *pipeline.Pipeline
	listener net.Listener
	slots    chan struct{}

	// OnDepart is passed through to each session (stats dashboard).
	OnDepart func(id int, name string)
}

// New binds the configured listener.
func New(cfg Config, pipe *pipeline.Pipeline) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("binding port %d: %w", cfg.Port, err)
	}

	log.WithField("addr", listener.Addr()).Info("cafe is open")
	return &Server{
		pipe:     pipe,
		listener: listener,
		slots:    make(chan struct{}, cfg.MaxSessions),
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// QueueTasks queues the accept loop, and a task which tears down the
// listener on group cancellation.
func (s *Server) QueueTasks(tasks *task.Group) {
	tasks.Queue("server.acceptor", func() error { return s.serve(tasks) })
	tasks.Queue("server.closer", func() error {
		<-tasks.Context().Done()
		return s.listener.Close()
	})
}

func (s *Server) serve(tasks *task.Group) error {
	for {
		var conn, err = s.listener.Accept()
		if err != nil {
			if tasks.Context().Err() != nil {
				return nil // Listener closed by shutdown.
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		acceptsTotal.Inc()
		log.WithField("client", conn.RemoteAddr()).Info("new customer connection")

		// Claim a session slot before handing off the connection.
		select {
		case s.slots <- struct{}{}:
		case <-tasks.Context().Done():
			_ = conn.Close()
			return nil
		}

		s.pipe.Connected.Inc()
		go func(conn net.Conn) {
			defer func() {
				s.pipe.Connected.Dec()
				<-s.slots
			}()

			var sess = session.New(conn, s.pipe)
			sess.OnDepart = s.OnDepart
			sess.Serve(tasks.Context())
		}(conn)
	}
}
