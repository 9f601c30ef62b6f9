// Package ssdp answers UPnP discovery searches and sends presence
// announcements over a modem UDP link.
package ssdp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"i4.energy/across/wifigw/httpd"
	"i4.energy/across/wifigw/ipd"
	"i4.energy/across/wifigw/metrics"
)

const (
	MulticastAddr = "239.255.255.250"
	Port          = 1900

	AllTargets = "ssdp:all"
	RootDevice = "upnp:rootdevice"

	DefaultMaxAge = 86400
)

//go:generate go tool mockgen -source=ssdp.go -destination=mock_sender.go -package=ssdp

// DatagramSender sends a datagram on a UDP link. An empty ip sends to the
// link's current remote.
type DatagramSender interface {
	SendTo(ctx context.Context, id int, ip string, port int, payload []byte) error
}

// Device describes what is announced.
type Device struct {
	// UUID identifies the device. When empty it is derived from
	// FriendlyName so it stays stable across restarts.
	UUID         string
	FriendlyName string
	DeviceType   string
	Manufacturer string
	ModelName    string
	// Location is the URL of the description document.
	Location string
	Server   string
	MaxAge   int
}

// Responder implements ipd.Handler for the discovery link.
type Responder struct {
	device Device
	usn    string
	link   int
	sender DatagramSender
	logger *slog.Logger
}

func NewResponder(sender DatagramSender, link int, device Device, logger *slog.Logger) (*Responder, error) {
	if device.UUID == "" {
		device.UUID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("wifigw:"+device.FriendlyName)).String()
	} else if _, err := uuid.Parse(device.UUID); err != nil {
		return nil, fmt.Errorf("ssdp: invalid device uuid: %w", err)
	}
	if device.DeviceType == "" {
		return nil, errors.New("ssdp: device type is required")
	}
	if device.MaxAge <= 0 {
		device.MaxAge = DefaultMaxAge
	}
	if device.Server == "" {
		device.Server = "Unspecified, UPnP/1.0, wifigw"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Responder{
		device: device,
		usn:    "uuid:" + device.UUID,
		link:   link,
		sender: sender,
		logger: logger.With("component", "ssdp"),
	}, nil
}

func (r *Responder) Device() Device { return r.device }

// Matches reports whether a search target st concerns this device.
func (r *Responder) Matches(st string) bool {
	switch st {
	case AllTargets, RootDevice, r.device.DeviceType, r.usn:
		return true
	}
	return false
}

// ServeFrame answers M-SEARCH requests for this device. Anything else on
// the link is ignored.
func (r *Responder) ServeFrame(ctx context.Context, f ipd.Frame) {
	req, err := httpd.Parse(f.Payload)
	if err != nil || req.Method != "M-SEARCH" || !req.Contains("ssdp:discover") {
		return
	}
	st := req.Header("ST")
	if !r.Matches(st) {
		return
	}

	if err := r.sender.SendTo(ctx, f.ConnID, f.RemoteIP, f.RemotePort, r.Reply(st)); err != nil {
		r.logger.Warn("failed to answer search", "st", st, "remote", f.RemoteIP, "error", err)
		return
	}
	metrics.DiscoveryReplies.Inc()
	r.logger.Debug("answered search", "st", st, "remote", f.RemoteIP)
}

// Reply is the unicast search response for st.
func (r *Responder) Reply(st string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	r.header(&b, "CACHE-CONTROL", "max-age="+strconv.Itoa(r.device.MaxAge))
	r.header(&b, "EXT", "")
	r.header(&b, "LOCATION", r.device.Location)
	r.header(&b, "SERVER", r.device.Server)
	r.header(&b, "ST", st)
	r.header(&b, "USN", r.usnFor(st))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Notify is the ssdp:alive announcement for the device type.
func (r *Responder) Notify() []byte {
	nt := r.device.DeviceType
	var b strings.Builder
	b.WriteString("NOTIFY * HTTP/1.1\r\n")
	r.header(&b, "HOST", MulticastAddr+":"+strconv.Itoa(Port))
	r.header(&b, "CACHE-CONTROL", "max-age="+strconv.Itoa(r.device.MaxAge))
	r.header(&b, "LOCATION", r.device.Location)
	r.header(&b, "NT", nt)
	r.header(&b, "NTS", "ssdp:alive")
	r.header(&b, "SERVER", r.device.Server)
	r.header(&b, "USN", r.usnFor(nt))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// Announce multicasts Notify on the discovery link.
func (r *Responder) Announce(ctx context.Context) error {
	if err := r.sender.SendTo(ctx, r.link, MulticastAddr, Port, r.Notify()); err != nil {
		return fmt.Errorf("ssdp: announce: %w", err)
	}
	return nil
}

func (r *Responder) usnFor(target string) string {
	if target == r.usn {
		return r.usn
	}
	return r.usn + "::" + target
}

func (r *Responder) header(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

type description struct {
	XMLName     xml.Name `xml:"urn:schemas-upnp-org:device-1-0 root"`
	SpecVersion struct {
		Major int `xml:"major"`
		Minor int `xml:"minor"`
	} `xml:"specVersion"`
	Device struct {
		DeviceType   string `xml:"deviceType"`
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

// Description renders the device description document served at
// Location.
func (r *Responder) Description() ([]byte, error) {
	var d description
	d.SpecVersion.Major = 1
	d.Device.DeviceType = r.device.DeviceType
	d.Device.FriendlyName = r.device.FriendlyName
	d.Device.Manufacturer = r.device.Manufacturer
	d.Device.ModelName = r.device.ModelName
	d.Device.UDN = r.usn

	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ssdp: description: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
