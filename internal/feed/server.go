package feed

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/1ureka/heartroom/internal/room"
	"github.com/1ureka/heartroom/internal/util"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     loopbackOrigin,
}

// loopbackOrigin admits clients that send no Origin (non-browser tools) and
// pages served from a loopback host. Any other web page is refused.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return isLoopbackHost(u.Hostname())
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Controller is the part of the room the feed drives.
type Controller interface {
	View() room.View
	SetLocalState(state string)
	ProcessLocation(ctx context.Context, loc *room.Location) (room.Outcome, error)
}

// Server is the loopback feed. It implements room.Observer.
type Server struct {
	ctrl Controller
	loc  *room.Location

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	clients map[string]*client
}

// client is one subscribed page. Writes are serialized by mu.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// NewServer creates a feed for ctrl. Links received from pages are applied
// through loc, the way a browser hash change would be.
func NewServer(ctrl Controller, loc *room.Location) *Server {
	return &Server{
		ctrl:    ctrl,
		loc:     loc,
		clients: make(map[string]*client),
	}
}

// Start listens on addr, which must be a loopback address (an empty host
// means 127.0.0.1). It returns the feed URL.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid feed address %q: %w", addr, err)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if !isLoopbackHost(host) {
		return "", fmt.Errorf("feed address %q is not a loopback address", addr)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return "", fmt.Errorf("failed to start feed server: %w", err)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.handleFeed)

	go func() {
		_ = http.Serve(listener, mux)
	}()
	go func() {
		<-s.ctx.Done()
		s.Close()
	}()

	return "ws://" + listener.Addr().String() + "/feed", nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogWarning("feed: refused connection from origin %q: %v", r.Header.Get("Origin"), err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	util.LogDebug("feed subscriber %s connected", c.id)

	v := s.ctrl.View()
	if err := c.write(Message{Type: TypeView, View: &v}); err != nil {
		s.drop(c)
		return
	}
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.drop(c)

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.LogDebug("feed subscriber %s: %v", c.id, err)
			}
			return
		}

		switch msg.Type {
		case TypeHeartState:
			s.ctrl.SetLocalState(msg.State)

		case TypeNavigate:
			s.loc.Navigate(msg.URL)
			out, err := s.ctrl.ProcessLocation(s.ctx, s.loc)
			if err != nil {
				// The room has already reported it as a status note.
				util.LogDebug("feed navigate: %v", err)
				continue
			}
			if out.Link != "" {
				if err := c.write(Message{Type: TypeLink, Link: out.Link}); err != nil {
					return
				}
			}

		default:
			util.LogWarning("feed subscriber %s: ignoring %q message", c.id, msg.Type)
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.mu.Unlock()

	if ok {
		c.conn.Close()
		util.LogDebug("feed subscriber %s disconnected", c.id)
	}
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	list := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		list = append(list, c)
	}
	s.mu.Unlock()

	for _, c := range list {
		if err := c.write(msg); err != nil {
			s.drop(c)
		}
	}
}

// Render pushes the projection to every subscriber.
func (s *Server) Render(v room.View) {
	s.broadcast(Message{Type: TypeView, View: &v})
}

// Status pushes a status note to every subscriber.
func (s *Server) Status(n room.Note) {
	s.broadcast(Message{Type: TypeStatus, Status: &n})
}

// Subscribers returns the number of connected pages.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops accepting pages and disconnects the current ones.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	list := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		list = append(list, c)
	}
	s.mu.Unlock()

	for _, c := range list {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		c.mu.Unlock()
		s.drop(c)
	}
}
