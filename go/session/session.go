// Package session implements the per-connection protocol handler.
// Each connected customer is owned by exactly one Session, which
// drives the request/response state machine, feeds ordered items
// into the shared pipeline, and interleaves asynchronous "ready"
// notifications onto the same framed connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/baristanet/cafe/go/pipeline"
	"github.com/baristanet/cafe/go/protocol"
	log "github.com/sirupsen/logrus"
)

// errTerminated is the clean-exit sentinel of the request loop.
var errTerminated = errors.New("session terminated by client")

// ReclaimNotice is sent when an incoming order was satisfied by an
// orphaned tray ticket instead of a fresh brew.
const ReclaimNotice = "That was fast! We have your order complete :)"

// Session owns one customer connection. Its handler goroutine is the
// sole reader of the connection; writes are shared with brew workers
// (notifications) and serialized by the codec.
type Session struct {
	conn  net.Conn
	codec *protocol.Codec
	pipe  *pipeline.Pipeline

	// OnDepart, if set, observes session teardown (stats dashboard).
	OnDepart func(id int, name string)

	name        string
	id          int
	outstanding []cafe.Item
	idle        bool
	registered  bool

	closed atomic.Bool
}

// New builds a Session over an accepted connection.
func New(conn net.Conn, pipe *pipeline.Pipeline) *Session {
	return &Session{
		conn:  conn,
		codec: protocol.NewCodec(conn),
		pipe:  pipe,
	}
}

// Serve performs the connect handshake and then runs the request
// loop until the client terminates, the transport fails, or `ctx`
// is cancelled. It always tears the session down before returning.
func (s *Session) Serve(ctx context.Context) {
	defer s.teardown()

	// Unblock pending reads when `ctx` is cancelled.
	var stop = context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	if err := s.connect(); err != nil {
		log.WithFields(log.Fields{"err": err, "client": s.conn.RemoteAddr()}).
			Warn("failed to connect customer")
		return
	}

	for {
		if err := s.serveRequest(); err == errTerminated {
			return
		} else if err != nil {
			log.WithFields(log.Fields{"err": err, "customer": s.name, "id": s.id}).
				Warn("session ended")
			return
		}
	}
}

// connect reads the customer descriptor, registers the customer, and
// moves their initial items into the pipeline (or reclaims orphaned
// tray tickets which already satisfy them).
func (s *Session) connect() error {
	var frame, err = s.codec.Read()
	if err != nil {
		return fmt.Errorf("reading customer descriptor: %w", err)
	} else if frame.Kind != protocol.KindCustomer {
		return fmt.Errorf("expected a customer descriptor, not a %q frame", frame.Kind)
	}
	var customer = *frame.Customer

	for i := range customer.Items {
		customer.Items[i].Normalize()
		if err = customer.Items[i].Validate(); err != nil {
			return fmt.Errorf("invalid item in initial order: %w", err)
		}
	}

	if !s.pipe.Customers.AddActive(customer.ID) {
		return fmt.Errorf("customer id %d is already connected", customer.ID)
	}
	s.registered = true
	s.name, s.id = customer.Name, customer.ID

	var reclaimed = s.intake(customer.Items, "connect")
	s.outstanding = customer.Items

	if err = s.codec.WriteText(protocol.RespConnected); err != nil {
		return fmt.Errorf("writing CONNECTED: %w", err)
	}
	// A single notice covers all connect-time reclaims. It follows
	// CONNECTED on the wire, so the client sees the handshake first.
	if reclaimed > 0 {
		s.Notify(ReclaimNotice)
	}

	log.WithFields(log.Fields{"customer": s.name, "id": s.id, "items": len(customer.Items)}).
		Info("customer connected")
	return nil
}

// intake routes each incoming item either to an orphaned tray ticket
// (reclamation) or into the waiting area, returning the number of
// reclaims. `trigger` labels the reclaim metric.
func (s *Session) intake(items []cafe.Item, trigger string) int {
	var reclaimed = 0
	for _, item := range items {
		// Snapshot active ids before entering the tray, so that no
		// two locks are held together.
		var active = s.pipe.Customers.ActiveIDs()

		if s.pipe.Tray.Reclaim(s.id, item, active, s) {
			reclaimed++
			reclaimsTotal.WithLabelValues(trigger).Inc()
			log.WithFields(log.Fields{"customer": s.name, "id": s.id, "item": item.String()}).
				Info("reassigned an abandoned order")
			continue
		}
		s.pipe.Waiting.Enqueue(cafe.NewTicket(s.id, item, s))
	}
	return reclaimed
}

// serveRequest reads and dispatches a single request frame.
func (s *Session) serveRequest() error {
	var frame, err = s.codec.Read()
	if err != nil {
		return fmt.Errorf("reading request: %w", err)
	} else if frame.Kind != protocol.KindText {
		return fmt.Errorf("expected a request token, not a %q frame", frame.Kind)
	}
	var request = strings.TrimSpace(frame.Text)

	switch {
	case strings.EqualFold(request, protocol.ReqTerminate):
		if err = s.codec.WriteText(protocol.RespTerminateConfirmed); err != nil {
			return err
		}
		log.WithFields(log.Fields{"customer": s.name, "id": s.id}).Info("customer terminated session")
		return errTerminated

	case strings.EqualFold(request, protocol.ReqOrderStatus):
		return s.serveOrderStatus()

	case strings.EqualFold(request, protocol.ReqCollect):
		return s.serveCollect()

	case strings.EqualFold(request, protocol.ReqNewOrder):
		return s.serveNewOrder()

	default:
		// Unknown requests are logged and ignored, without a reply.
		log.WithFields(log.Fields{"customer": s.name, "id": s.id, "request": request}).
			Warn("ignoring unrecognized request")
		return nil
	}
}

func (s *Session) serveOrderStatus() error {
	if err := s.codec.WriteText(protocol.RespOrderStatus); err != nil {
		return err
	}
	if s.idle {
		return s.codec.WriteText(fmt.Sprintf("No order found for %s - customer is idle", s.name))
	}
	return s.codec.WriteText(s.statusBlob())
}

// statusBlob reports the stage of each outstanding item. Items are
// checked against waiting, then brewing, then the tray. A completed
// brew moves to the tray before leaving brewing, so an item never
// appears in neither container mid-transition; a stale BREWED answer
// for a just-completed item is acceptable.
func (s *Session) statusBlob() string {
	var b strings.Builder
	var now = time.Now().Format(time.RFC3339)

	for _, item := range s.outstanding {
		switch {
		case s.pipe.Waiting.ContainsItem(s.id, item):
			fmt.Fprintf(&b, "%s's order %q is currently in the WAITING area. Last checked: %s\n", s.name, item, now)
		case s.pipe.Brewing.ContainsItem(s.id, item):
			fmt.Fprintf(&b, "%s's order %q is being BREWED. Last checked: %s\n", s.name, item, now)
		case s.pipe.Tray.ContainsItem(s.id, item):
			fmt.Fprintf(&b, "%s's order %q is READY for collection. Last checked: %s\n", s.name, item, now)
		default:
			fmt.Fprintf(&b, "Order %q not found in any area : possible tracking error.\n", item)
		}
	}
	return b.String()
}

func (s *Session) serveCollect() error {
	if s.idle {
		return s.codec.WriteText(protocol.RespNoOrderFound)
	}

	// All-or-nothing: either every outstanding item has a matching
	// tray ticket and all of them leave the tray, or nothing moves.
	if !s.pipe.Tray.CollectAll(s.id, s.outstanding) {
		return s.codec.WriteText(protocol.RespCollectNotReady)
	}

	s.idle = true
	s.outstanding = nil
	s.pipe.Customers.SetIdle(s.id, s.name)
	collectionsTotal.Inc()

	log.WithFields(log.Fields{"customer": s.name, "id": s.id}).
		Info("customer collected their order and is now idle")
	return s.codec.WriteText(protocol.RespCollectReady)
}

func (s *Session) serveNewOrder() error {
	if err := s.codec.WriteText(protocol.RespNewOrderReady); err != nil {
		return err
	}

	var frame, err = s.codec.Read()
	if err != nil {
		return fmt.Errorf("reading new-order items: %w", err)
	} else if frame.Kind != protocol.KindItems {
		return fmt.Errorf("expected an item list, not a %q frame", frame.Kind)
	}

	var items = frame.Items
	for i := range items {
		items[i].Normalize()
		if err = items[i].Validate(); err != nil {
			return fmt.Errorf("invalid item in new order: %w", err)
		}
	}

	s.outstanding = append(s.outstanding, items...)
	for _, item := range items {
		// New-order reclaims notify per reclaimed item.
		if s.intake([]cafe.Item{item}, "new_order") != 0 {
			s.Notify(ReclaimNotice)
		}
	}

	s.idle = false
	s.pipe.Customers.ClearIdle(s.id)

	log.WithFields(log.Fields{"customer": s.name, "id": s.id, "items": len(items)}).
		Info("customer placed a new order")
	return s.codec.WriteText(protocol.RespNewOrderConfirmed)
}

// Notify delivers an asynchronous server notification, or drops it
// if the session has closed. It implements cafe.NotifySink for the
// session's tickets, and may be called from brew workers at any time.
func (s *Session) Notify(text string) {
	if s.closed.Load() {
		notificationsTotal.WithLabelValues("dropped").Inc()
		return
	}
	if err := s.codec.WriteText(protocol.NotifyPrefix + text); err != nil {
		notificationsTotal.WithLabelValues("failed").Inc()
		log.WithFields(log.Fields{"err": err, "customer": s.name, "id": s.id}).
			Warn("failed to deliver notification")
		return
	}
	notificationsTotal.WithLabelValues("sent").Inc()
}

// teardown releases session resources. Outstanding tickets remain in
// the pipeline and become reclamation candidates.
func (s *Session) teardown() {
	s.closed.Store(true)
	_ = s.conn.Close()

	if s.registered {
		s.pipe.Customers.RemoveActive(s.id)
		if s.OnDepart != nil {
			s.OnDepart(s.id, s.name)
		}
		log.WithFields(log.Fields{"customer": s.name, "id": s.id}).Info("customer disconnected")
	}
}
