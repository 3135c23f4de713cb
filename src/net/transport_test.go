package net

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/spantree/src/common"
	"github.com/mosaicnetworks/spantree/src/vector"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr, time.Second)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, common.NewTestEntry(t))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

func connect(ttype int, from, to Transport) {
	if ttype == INMEM {
		from.(*InmemTransport).Connect(to.LocalAddr(), to)
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_Send(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		msg := &Message{
			Tag:     TreeConverge,
			SrcID:   2,
			Round:   7,
			Payload: "converge",
			Vector:  vector.State{vector.Passive, vector.Active, vector.Unknown},
		}

		errCh := make(chan error, 1)
		go func() {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*Message)
				if !reflect.DeepEqual(req, msg) {
					errCh <- errors.New("message mismatch: " + req.String() + " " + msg.String())
				}
				rpc.Respond(&Ack{FromID: 1}, nil)
				errCh <- nil
			case <-time.After(time.Second):
				errCh <- errors.New("timeout")
			}
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connect(ttype, trans2, trans1)

		if err := trans2.Send(trans1.LocalAddr(), msg); err != nil {
			t.Fatalf("err: %v", err)
		}
		if err := <-errCh; err != nil {
			t.Fatalf("transport %d: %v", ttype, err)
		}
	}
}

func TestTransport_SendError(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		go func() {
			rpc := <-rpcCh
			rpc.Respond(&Ack{}, errors.New("unknown peer"))
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connect(ttype, trans2, trans1)

		err := trans2.Send(trans1.LocalAddr(), NewMessage(TreeInvite, 0, 0, "Invite"))
		if err == nil || err.Error() != "unknown peer" {
			t.Fatalf("transport %d: err should be 'unknown peer', not %v", ttype, err)
		}
	}
}

// Sequential Sends from one sender reach the consumer in the same order.
func TestTransport_FIFO(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		const count = 50
		received := make([]int, 0, count)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for len(received) < count {
				select {
				case rpc := <-rpcCh:
					received = append(received, rpc.Command.(*Message).Round)
					rpc.Respond(&Ack{}, nil)
				case <-time.After(2 * time.Second):
					return
				}
			}
		}()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connect(ttype, trans2, trans1)

		for i := 0; i < count; i++ {
			if err := trans2.Send(trans1.LocalAddr(), NewMessage(TreeBroadcast, 0, i, "")); err != nil {
				t.Fatalf("err: %v", err)
			}
		}
		wg.Wait()

		if len(received) != count {
			t.Fatalf("transport %d: received %d messages, not %d", ttype, len(received), count)
		}
		for i, r := range received {
			if r != i {
				t.Fatalf("transport %d: message %d arrived at position %d", ttype, r, i)
			}
		}
	}
}

func TestInmemTransport_Unknown(t *testing.T) {
	_, trans := NewInmemTransport("", 10*time.Millisecond)
	if err := trans.Send("nowhere", NewMessage(TreeInvite, 0, 0, "")); err == nil {
		t.Fatalf("sending to an unconnected peer should fail")
	}
}

func TestInmemTransport_CopiesVector(t *testing.T) {
	_, trans1 := NewInmemTransport("a", time.Second)
	_, trans2 := NewInmemTransport("b", time.Second)
	ConnectAll(trans1, trans2)

	msg := &Message{Tag: TreeConverge, Vector: vector.State{vector.Passive}}

	done := make(chan *Message, 1)
	go func() {
		rpc := <-trans1.Consumer()
		rpc.Respond(&Ack{}, nil)
		done <- rpc.Command.(*Message)
	}()

	if err := trans2.Send("a", msg); err != nil {
		t.Fatalf("err: %v", err)
	}
	got := <-done
	msg.Vector[0] = vector.Active
	if got.Vector[0] != vector.Passive {
		t.Fatalf("received vector aliases the sender's")
	}
}

func TestTransport_Dial(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, "127.0.0.1:0", t)
		addr := trans1.LocalAddr()

		trans2 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans2.Close()
		connect(ttype, trans2, trans1)

		if err := trans2.Dial(addr); err != nil {
			t.Fatalf("transport %d: err: %v", ttype, err)
		}

		trans1.Close()

		trans3 := NewTestTransport(ttype, "127.0.0.1:0", t)
		defer trans3.Close()
		connect(ttype, trans3, trans1)

		if err := trans3.Dial(addr); err == nil {
			t.Fatalf("transport %d: dialing a closed transport should fail", ttype)
		}
	}
}

func TestInmemTransport_ClosedPeer(t *testing.T) {
	_, trans1 := NewInmemTransport("a", 0)
	_, trans2 := NewInmemTransport("b", 0)
	ConnectAll(trans1, trans2)

	if trans2.timeout != DefaultInmemTimeout {
		t.Fatalf("timeout should default to %v, not %v", DefaultInmemTimeout, trans2.timeout)
	}

	trans1.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- trans2.Send("a", NewMessage(TreeInvite, 1, 0, ""))
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("sending to a closed peer should fail")
		}
	case <-time.After(time.Second):
		t.Fatalf("Send to a closed peer is blocked")
	}
}
