package ssdp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"
	"i4.energy/across/wifigw/ipd"
)

const deviceType = "urn:Belkin:device:controllee:1"

func search(st string) ipd.Frame {
	payload := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: " + st + "\r\n\r\n"
	return ipd.Frame{
		Header:  ipd.Header{ConnID: 4, Length: len(payload), RemoteIP: "192.168.1.9", RemotePort: 50000},
		Payload: []byte(payload),
	}
}

func newResponder(t *testing.T, sender DatagramSender) *Responder {
	t.Helper()
	r, err := NewResponder(sender, 4, Device{
		UUID:         "38323636-4558-4dda-9188-cda0e6cc3dc0",
		FriendlyName: "lamp",
		DeviceType:   deviceType,
		Location:     "http://192.168.1.5:80/setup.xml",
	}, nil)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	return r
}

func TestServeFrame(t *testing.T) {
	t.Run("Matching search is answered to the requester", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := NewMockDatagramSender(ctrl)
		sender.EXPECT().SendTo(gomock.Any(), 4, "192.168.1.9", 50000, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int, _ string, _ int, payload []byte) error {
				s := string(payload)
				if !strings.HasPrefix(s, "HTTP/1.1 200 OK\r\n") {
					t.Errorf("unexpected status line in %q", s)
				}
				if !strings.Contains(s, "LOCATION: http://192.168.1.5:80/setup.xml\r\n") {
					t.Errorf("missing location in %q", s)
				}
				if !strings.Contains(s, "USN: uuid:38323636-4558-4dda-9188-cda0e6cc3dc0::"+deviceType+"\r\n") {
					t.Errorf("unexpected USN in %q", s)
				}
				return nil
			})

		newResponder(t, sender).ServeFrame(context.Background(), search(deviceType))
	})

	for _, st := range []string{AllTargets, RootDevice} {
		t.Run("Generic target "+st, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			sender := NewMockDatagramSender(ctrl)
			sender.EXPECT().SendTo(gomock.Any(), 4, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

			newResponder(t, sender).ServeFrame(context.Background(), search(st))
		})
	}

	t.Run("Other targets are ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := NewMockDatagramSender(ctrl)
		sender.EXPECT().SendTo(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		newResponder(t, sender).ServeFrame(context.Background(), search("urn:dial-multiscreen-org:service:dial:1"))
	})

	t.Run("Announcements from others are ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := NewMockDatagramSender(ctrl)
		sender.EXPECT().SendTo(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		payload := "NOTIFY * HTTP/1.1\r\nNT: upnp:rootdevice\r\nNTS: ssdp:alive\r\n\r\n"
		newResponder(t, sender).ServeFrame(context.Background(), ipd.Frame{Payload: []byte(payload)})
	})
}

func TestAnnounce(t *testing.T) {
	t.Run("Multicast notify", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := NewMockDatagramSender(ctrl)
		sender.EXPECT().SendTo(gomock.Any(), 4, MulticastAddr, Port, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int, _ string, _ int, payload []byte) error {
				s := string(payload)
				if !strings.HasPrefix(s, "NOTIFY * HTTP/1.1\r\n") || !strings.Contains(s, "NTS: ssdp:alive\r\n") {
					t.Errorf("unexpected notify %q", s)
				}
				return nil
			})

		if err := newResponder(t, sender).Announce(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Send failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := NewMockDatagramSender(ctrl)
		sendErr := errors.New("SEND FAIL")
		sender.EXPECT().SendTo(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(sendErr)

		if err := newResponder(t, sender).Announce(context.Background()); !errors.Is(err, sendErr) {
			t.Errorf("expected wrapped send error, got %v", err)
		}
	})
}

func TestNewResponder(t *testing.T) {
	t.Run("Derived UUID is stable", func(t *testing.T) {
		a, err := NewResponder(nil, 4, Device{FriendlyName: "lamp", DeviceType: deviceType}, nil)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := NewResponder(nil, 4, Device{FriendlyName: "lamp", DeviceType: deviceType}, nil)
		if a.Device().UUID == "" || a.Device().UUID != b.Device().UUID {
			t.Errorf("expected stable uuid, got %q and %q", a.Device().UUID, b.Device().UUID)
		}
	})

	t.Run("Invalid UUID", func(t *testing.T) {
		if _, err := NewResponder(nil, 4, Device{UUID: "nope", DeviceType: deviceType}, nil); err == nil {
			t.Error("expected error for invalid uuid")
		}
	})

	t.Run("Device type required", func(t *testing.T) {
		if _, err := NewResponder(nil, 4, Device{}, nil); err == nil {
			t.Error("expected error without device type")
		}
	})
}

func TestDescription(t *testing.T) {
	body, err := newResponder(t, nil).Description()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(body)
	for _, want := range []string{
		"<?xml",
		"<deviceType>" + deviceType + "</deviceType>",
		"<friendlyName>lamp</friendlyName>",
		"<UDN>uuid:38323636-4558-4dda-9188-cda0e6cc3dc0</UDN>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("description missing %q:\n%s", want, s)
		}
	}
}
