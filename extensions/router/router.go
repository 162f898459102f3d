// Package router dispatches the PUBLISH packets of an MQTT 3.1.1 session
// to handlers registered by topic filter.
//
//	r := router.New()
//	r.MustHandle("sensors/+/temp", onTemperature)
//	r.MustHandle("sensors/#", onJSON, router.PayloadMatches(regexp.MustCompile(`^\{`)))
//
//	_, err := session.Subscribe(ctx, r.Filters()...)
//	err = r.Serve(ctx, session, nil)
package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/vitalvas/mqtt311"
)

var ErrNilHandler = errors.New("router: nil handler")

// Handler processes one routed message. Handlers run on the goroutine
// that calls Route or Serve.
type Handler func(msg *mqtt311.PublishPacket)

// Match narrows the messages a route receives beyond its topic filter.
type Match func(msg *mqtt311.PublishPacket) bool

// Retained selects messages by the RETAIN flag. Brokers set it on
// messages replayed from the retained store when a subscription starts.
func Retained(retain bool) Match {
	return func(msg *mqtt311.PublishPacket) bool { return msg.Retain == retain }
}

func TopicMatches(re *regexp.Regexp) Match {
	return func(msg *mqtt311.PublishPacket) bool { return re.MatchString(msg.Topic) }
}

func PayloadMatches(re *regexp.Regexp) Match {
	return func(msg *mqtt311.PublishPacket) bool { return re.Match(msg.Payload) }
}

type route struct {
	filter  string
	handler Handler
	matches []Match
}

func (rt *route) accepts(msg *mqtt311.PublishPacket) bool {
	if !mqtt311.TopicMatch(rt.filter, msg.Topic) {
		return false
	}
	for _, m := range rt.matches {
		if !m(msg) {
			return false
		}
	}
	return true
}

// Router is safe for concurrent use. Routes are tried in registration
// order and every accepting route is called.
type Router struct {
	mu     sync.RWMutex
	routes []route
}

func New() *Router {
	return &Router{}
}

// Handle registers handler for messages whose topic matches filter and
// that pass every match.
func (r *Router) Handle(filter string, handler Handler, matches ...Match) error {
	if err := mqtt311.ValidateTopicFilter(filter); err != nil {
		return fmt.Errorf("router: filter %q: %w", filter, err)
	}
	if handler == nil {
		return ErrNilHandler
	}

	r.mu.Lock()
	r.routes = append(r.routes, route{filter: filter, handler: handler, matches: matches})
	r.mu.Unlock()

	return nil
}

// MustHandle is Handle for filters known to be valid. It panics on error.
func (r *Router) MustHandle(filter string, handler Handler, matches ...Match) {
	if err := r.Handle(filter, handler, matches...); err != nil {
		panic(err)
	}
}

// Route calls every handler that accepts msg and reports whether there
// was one.
func (r *Router) Route(msg *mqtt311.PublishPacket) bool {
	if msg == nil {
		return false
	}

	r.mu.RLock()
	var handlers []Handler
	for i := range r.routes {
		if r.routes[i].accepts(msg) {
			handlers = append(handlers, r.routes[i].handler)
		}
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
	return len(handlers) > 0
}

// Receiver is implemented by *mqtt311.Session and *mqtt311.Connection.
type Receiver interface {
	Receive(ctx context.Context) (mqtt311.Packet, error)
}

// Serve routes every received PUBLISH until Receive fails and returns that
// error. Packets that are not PUBLISH, and messages no route accepted, go
// to unhandled when it is set.
func (r *Router) Serve(ctx context.Context, receiver Receiver, unhandled func(mqtt311.Packet)) error {
	for {
		pkt, err := receiver.Receive(ctx)
		if err != nil {
			return err
		}

		if msg, ok := pkt.(*mqtt311.PublishPacket); ok && r.Route(msg) {
			continue
		}
		if unhandled != nil {
			unhandled(pkt)
		}
	}
}

// Filters returns the distinct registered filters, sorted, for
// Session.Subscribe.
func (r *Router) Filters() []string {
	r.mu.RLock()
	filters := make([]string, 0, len(r.routes))
	for _, rt := range r.routes {
		filters = append(filters, rt.filter)
	}
	r.mu.RUnlock()

	slices.Sort(filters)
	return slices.Compact(filters)
}

func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// Clear removes every route.
func (r *Router) Clear() {
	r.mu.Lock()
	r.routes = nil
	r.mu.Unlock()
}
