package transport_test

import (
	"context"
	"io"
	"io/ioutil"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ugorji/go/codec"

	"github.com/crow-misia/jubatus-go-client/testutil"
	"github.com/crow-misia/jubatus-go-client/transport"
)

func dial(t *testing.T, srv *testutil.Server, opts ...transport.Option) *transport.Client {
	c, err := transport.Dial(context.Background(), srv.Host(), srv.Port(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRequest(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestRequest.\n")
	assert := assert.New(t)

	srv, err := testutil.NewServer(func(req *testutil.Request) (interface{}, interface{}) {
		switch req.Method {
		case "echo":
			return req.Params, nil
		case "fail":
			return nil, "something wrong"
		default:
			return nil, transport.RemoteNoMethod
		}
	})
	assert.NoError(err)
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	{
		reply, err := c.Request(context.Background(), "echo", "tsk", 1, "two")
		if !assert.NoError(err) {
			return
		}
		assert.NotZero(reply.MsgID)

		var result []interface{}
		assert.NoError(transport.Unmarshal(reply.Result, &result))
		assert.Len(result, 3)
		assert.Equal("tsk", result[0])
		assert.EqualValues(1, result[1])
		assert.Equal("two", result[2])
	}

	{
		reply, err := c.Request(context.Background(), "fail")
		assert.Error(err)
		remote, ok := err.(*transport.RemoteError)
		assert.True(ok)
		assert.Equal("remote error: something wrong", remote.Error())
		assert.Equal(reply.MsgID, remote.MsgID)
	}

	{
		_, err := c.Request(context.Background(), "unknown")
		remote, ok := err.(*transport.RemoteError)
		assert.True(ok)
		assert.Equal("remote error 1 (no such method)", remote.Error())
	}

	// Requests carry params as sent, and an empty array when none.
	reqs := srv.Requests()
	assert.Len(reqs, 3)
	assert.Equal("fail", reqs[1].Method)
	assert.Empty(reqs[1].Params)
}

func TestNilResult(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestNilResult.\n")
	assert := assert.New(t)

	// Every request gets a nil result with a nil error slot.
	srv, err := testutil.NewServer(nil)
	assert.NoError(err)
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	for i := 0; i < 3; i++ {
		reply, err := c.Request(context.Background(), "clear", "")
		if !assert.NoError(err, "call %d", i) {
			return
		}
		assert.NotZero(reply.MsgID)

		var v interface{} = "not nil"
		assert.NoError(transport.Unmarshal(reply.Result, &v))
		assert.Nil(v)
	}
	assert.Len(srv.Requests(), 3)

	// Empty data decodes as nil too.
	var v interface{} = 1
	assert.NoError(transport.Unmarshal(nil, &v))
	assert.Nil(v)
}

func TestOutOfOrder(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestOutOfOrder.\n")
	assert := assert.New(t)

	srv, err := testutil.NewServer(nil)
	assert.NoError(err)
	defer srv.Close()
	srv.Hold("slow")

	c := dial(t, srv)
	defer c.Close()

	wg := &sync.WaitGroup{}
	results := make([]string, 2)
	for i, arg := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, arg string) {
			defer wg.Done()
			reply, err := c.Request(context.Background(), "slow", arg)
			if !assert.NoError(err) {
				return
			}
			assert.NoError(transport.Unmarshal(reply.Result, &results[i]))
		}(i, arg)
	}

	p1 := srv.Expect("slow")
	p2 := srv.Expect("slow")
	// Answer in reverse arrival order; each caller still gets its own result.
	p2.Reply(p2.Params[0])
	p1.Reply(p1.Params[0])
	wg.Wait()

	assert.Equal([]string{"first", "second"}, results)
}

func TestTimeout(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestTimeout.\n")
	assert := assert.New(t)

	srv, err := testutil.NewServer(nil)
	assert.NoError(err)
	defer srv.Close()
	srv.Hold("slow")

	c := dial(t, srv, transport.OptTimeout(50*time.Millisecond))
	defer c.Close()
	assert.Equal(50*time.Millisecond, c.Timeout())

	reply, err := c.Request(context.Background(), "slow")
	assert.Equal(context.DeadlineExceeded, err)
	assert.NotZero(reply.MsgID)

	// A late answer to the abandoned request is dropped.
	srv.Expect("slow").Reply(true)

	// Context deadline wins over the configured timeout.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Request(ctx, "slow")
	assert.Equal(context.Canceled, err)

	_, err = transport.Dial(context.Background(), srv.Host(), srv.Port(), transport.OptTimeout(-1))
	assert.Error(err)
}

func TestCallback(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestCallback.\n")
	assert := assert.New(t)

	srv, err := testutil.NewServer(func(req *testutil.Request) (interface{}, interface{}) {
		return len(req.Params), nil
	})
	assert.NoError(err)
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	done := make(chan struct{})
	c.Call("count", []interface{}{"a", "b"}, func(err error, result codec.Raw, msgID uint32) {
		defer close(done)
		assert.NoError(err)
		assert.NotZero(msgID)
		var n int
		assert.NoError(transport.Unmarshal(result, &n))
		assert.Equal(2, n)
	})
	<-done
}

func TestClose(t *testing.T) {
	log.Printf("\n")
	log.Printf(">>> TestClose.\n")
	assert := assert.New(t)

	srv, err := testutil.NewServer(nil)
	assert.NoError(err)
	defer srv.Close()
	srv.Hold("slow")

	c := dial(t, srv)

	errC := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), "slow")
		errC <- err
	}()
	srv.Expect("slow")

	assert.NoError(c.Close())
	assert.Equal(transport.ErrClosed, <-errC)
	assert.Equal(transport.ErrClosed, c.Close())

	_, err = c.Request(context.Background(), "any")
	assert.Equal(transport.ErrClosed, err)
}

func TestBrokenConn(t *testing.T) {
	assert := assert.New(t)

	server, client := net.Pipe()
	c, err := transport.NewClient(client)
	assert.NoError(err)

	go func() {
		dec := transport.NewStreamDecoder(server)
		var frame []interface{}
		dec.Decode(&frame)

		// Not a msgpack-rpc message.
		data, _ := transport.Marshal([]interface{}{9, 9})
		server.Write(data)
		io.Copy(ioutil.Discard, server)
	}()

	_, err = c.Request(context.Background(), "any")
	assert.Equal(transport.ErrClosed, err)
}

func TestRawStrings(t *testing.T) {
	assert := assert.New(t)

	// Old msgpack raw format: a 40 bytes string uses raw16 (0xda), not str8 (0xd9).
	data, err := transport.Marshal("0123456789012345678901234567890123456789")
	assert.NoError(err)
	assert.Equal(byte(0xda), data[0])

	var s interface{}
	assert.NoError(transport.Unmarshal(data, &s))
	assert.Equal("0123456789012345678901234567890123456789", s)
}
