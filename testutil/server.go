// Package testutil contains an in-process msgpack-rpc server for tests.
package testutil

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/crow-misia/jubatus-go-client/transport"
)

// Request is a request received by Server.
type Request struct {
	MsgID  uint32
	Method string
	Params []interface{}
}

// Handler returns either a result or an error object for a request.
type Handler func(req *Request) (result interface{}, errObj interface{})

// Server is a msgpack-rpc server listening on a loopback address.
//
// Requests are answered by the Handler unless their method is held (see
// Hold): then they are parked until the test picks them up with Expect and
// answers them explicitly, which allows replying out of order.
type Server struct {
	ln      net.Listener
	handler Handler

	parkedC chan *Parked

	mu       sync.Mutex
	held     map[string]bool
	requests []*Request
	conns    map[net.Conn]struct{}
	pending  []*Parked
	wg       sync.WaitGroup
}

// Parked is a held request waiting for an answer.
type Parked struct {
	*Request
	reply func(result, errObj interface{})
	once  sync.Once
}

// NewServer starts a Server. handler may be nil: every request then gets a
// nil result.
func NewServer(handler Handler) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	if handler == nil {
		handler = func(*Request) (interface{}, interface{}) { return nil, nil }
	}
	srv := &Server{
		ln:      ln,
		handler: handler,
		parkedC: make(chan *Parked, 64),
		held:    make(map[string]bool),
		conns:   make(map[net.Conn]struct{}),
	}
	srv.wg.Add(1)
	go srv.acceptLoop()
	return srv, nil
}

// Host returns the listening host.
func (srv *Server) Host() string {
	return srv.ln.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the listening port.
func (srv *Server) Port() int {
	return srv.ln.Addr().(*net.TCPAddr).Port
}

// Hold parks all later requests of method until Expect picks them.
func (srv *Server) Hold(method string) {
	srv.mu.Lock()
	srv.held[method] = true
	srv.mu.Unlock()
}

// Expect waits for a parked request of method. Not for concurrent use.
func (srv *Server) Expect(method string) *Parked {
	for i, p := range srv.pending {
		if p.Method == method {
			srv.pending = append(srv.pending[:i], srv.pending[i+1:]...)
			return p
		}
	}
	for p := range srv.parkedC {
		if p.Method == method {
			return p
		}
		srv.pending = append(srv.pending, p)
	}
	return nil
}

// Reply answers the parked request with a result.
func (p *Parked) Reply(result interface{}) {
	p.once.Do(func() { p.reply(result, nil) })
}

// Fail answers the parked request with an error object.
func (p *Parked) Fail(errObj interface{}) {
	p.once.Do(func() { p.reply(nil, errObj) })
}

// Requests returns all requests received so far in arrival order.
func (srv *Server) Requests() []*Request {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]*Request(nil), srv.requests...)
}

// Close stops the server and closes all connections.
func (srv *Server) Close() {
	srv.ln.Close()
	srv.mu.Lock()
	for conn := range srv.conns {
		conn.Close()
	}
	srv.mu.Unlock()
	srv.wg.Wait()
}

func (srv *Server) acceptLoop() {
	defer srv.wg.Done()
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			return
		}
		srv.mu.Lock()
		srv.conns[conn] = struct{}{}
		srv.mu.Unlock()

		srv.wg.Add(1)
		go srv.serveConn(conn)
	}
}

func (srv *Server) serveConn(conn net.Conn) {
	defer srv.wg.Done()
	defer conn.Close()

	wmu := &sync.Mutex{}
	write := func(msgID uint32, result, errObj interface{}) {
		data, err := transport.Marshal([]interface{}{1, msgID, errObj, result})
		if err != nil {
			panic(errors.Wrap(err, "testutil.Server: encode response"))
		}
		wmu.Lock()
		conn.Write(data)
		wmu.Unlock()
	}

	dec := transport.NewStreamDecoder(conn)
	for {
		var frame []interface{}
		if err := dec.Decode(&frame); err != nil {
			return
		}
		req, err := parseRequest(frame)
		if err != nil {
			return
		}

		srv.mu.Lock()
		srv.requests = append(srv.requests, req)
		held := srv.held[req.Method]
		srv.mu.Unlock()

		if held {
			srv.parkedC <- &Parked{
				Request: req,
				reply: func(result, errObj interface{}) {
					write(req.MsgID, result, errObj)
				},
			}
			continue
		}

		result, errObj := srv.handler(req)
		write(req.MsgID, result, errObj)
	}
}

func parseRequest(frame []interface{}) (*Request, error) {
	if len(frame) != 4 {
		return nil, errors.Errorf("expect 4 elements but got %d", len(frame))
	}
	msgID, ok := toUint32(frame[1])
	if !ok {
		return nil, errors.Errorf("bad msgid %v", frame[1])
	}
	method, ok := frame[2].(string)
	if !ok {
		return nil, errors.Errorf("bad method %v", frame[2])
	}
	params, _ := frame[3].([]interface{})
	return &Request{
		MsgID:  msgID,
		Method: method,
		Params: params,
	}, nil
}

func toUint32(v interface{}) (uint32, bool) {
	switch n := v.(type) {
	case uint64:
		return uint32(n), true
	case int64:
		return uint32(n), true
	}
	return 0, false
}
