package httpd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
)

func TestRouter(t *testing.T) {
	t.Run("Exact match dispatch", func(t *testing.T) {
		var called []string
		rt := NewRouter(4)
		rt.Register("/on", func(context.Context, *Responder, *Request) error {
			called = append(called, "on")
			return nil
		})
		rt.Register("/off", func(context.Context, *Responder, *Request) error {
			called = append(called, "off")
			return nil
		})

		if err := rt.Dispatch(context.Background(), nil, &Request{Path: "/off"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(called) != 1 || called[0] != "off" {
			t.Errorf("expected only /off handler, got %v", called)
		}
	})

	t.Run("First registration wins", func(t *testing.T) {
		var which int
		rt := NewRouter(4)
		rt.Register("/", func(context.Context, *Responder, *Request) error { which = 1; return nil })
		rt.Register("/", func(context.Context, *Responder, *Request) error { which = 2; return nil })

		rt.Dispatch(context.Background(), nil, &Request{Path: "/"})
		if which != 1 {
			t.Errorf("expected first handler, got %d", which)
		}
	})

	t.Run("Unmatched path gets 404", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := NewMockSender(ctrl)
		sender.EXPECT().Send(gomock.Any(), 2, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int, payload []byte) error {
				if !bytes.HasPrefix(payload, []byte("HTTP/1.1 404 Not Found\r\n")) {
					t.Errorf("expected 404 status line, got %q", payload)
				}
				return nil
			})

		rt := NewRouter(4)
		rt.Register("/on", func(context.Context, *Responder, *Request) error {
			t.Error("/on must not be called")
			return nil
		})

		err := rt.Dispatch(context.Background(), NewResponder(sender, 0), &Request{ConnID: 2, Path: "/missing"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Table capacity", func(t *testing.T) {
		rt := NewRouter(2)
		h := func(context.Context, *Responder, *Request) error { return nil }
		for _, p := range []string{"/a", "/b"} {
			if err := rt.Register(p, h); err != nil {
				t.Fatalf("unexpected error registering %s: %v", p, err)
			}
		}
		if err := rt.Register("/c", h); !errors.Is(err, ErrRouteTableFull) {
			t.Errorf("expected ErrRouteTableFull, got %v", err)
		}
		if rt.Len() != 2 {
			t.Errorf("expected 2 routes, got %d", rt.Len())
		}
	})

	t.Run("Nil handler", func(t *testing.T) {
		if err := NewRouter(1).Register("/", nil); !errors.Is(err, ErrNilHandler) {
			t.Errorf("expected ErrNilHandler, got %v", err)
		}
	})
}
