package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

type UDPConfig struct {
	ListenAddr string
	// Peers are the remote datagram addresses every message is sent to.
	Peers []string
	// ReadTimeout bounds each read so Receive observes cancellation.
	ReadTimeout time.Duration
}

// UDP sends each message as one datagram to every configured peer.
type UDP struct {
	conn  *net.UDPConn
	peers []*net.UDPAddr

	closeOnce sync.Once
	readTO    time.Duration
}

func ListenUDP(cfg UDPConfig) (*UDP, error) {
	addr := strings.TrimSpace(cfg.ListenAddr)
	if addr == "" {
		return nil, ErrNoListenAddr
	}
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve listen %q: %w", addr, err)
	}
	peers := make([]*net.UDPAddr, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		raddr, err := net.ResolveUDPAddr("udp", p)
		if err != nil {
			return nil, fmt.Errorf("transport: resolve peer %q: %w", p, err)
		}
		peers = append(peers, raddr)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	readTO := cfg.ReadTimeout
	if readTO <= 0 {
		readTO = 250 * time.Millisecond
	}
	log.Info().Msgf("transport.UDP listening addr=%s peers=%d", conn.LocalAddr(), len(peers))
	return &UDP{conn: conn, peers: peers, readTO: readTO}, nil
}

func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDP) Send(ctx context.Context, msg *protocol.ObjectSyncMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range u.peers {
		if _, err := u.conn.WriteToUDP(b, p); err != nil {
			errs = append(errs, fmt.Errorf("send %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// Receive blocks for the next decodable datagram. Decode failures are
// returned so the caller can count them; the next call keeps reading.
func (u *UDP) Receive(ctx context.Context) (*protocol.ObjectSyncMessage, error) {
	buf := make([]byte, int(frame.FixedHeaderLen)+int(frame.DefaultLimits().MaxPayloadBytes))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = u.conn.SetReadDeadline(time.Now().Add(u.readTO))
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, ErrClosed
			}
			return nil, err
		}
		msg, err := protocol.Unmarshal(buf[:n])
		if err != nil {
			return nil, fmt.Errorf("transport: datagram from %s: %w", from, err)
		}
		return msg, nil
	}
}

func (u *UDP) Close() error {
	var err error
	u.closeOnce.Do(func() {
		err = u.conn.Close()
	})
	return err
}
