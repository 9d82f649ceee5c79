package cube

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/banshee-data/radar-ingest/internal/nodeerr"
	"github.com/banshee-data/radar-ingest/internal/radar"
)

// StatsInterface mirrors the teacher's PacketStatsInterface: a narrow,
// swappable sink for counters so the listener never depends directly on
// internal/metrics.
type StatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	AddCube()
}

type noopStats struct{}

func (noopStats) AddPacket(int) {}
func (noopStats) AddDropped()   {}
func (noopStats) AddCube()      {}

// batchSize is the number of datagrams requested per ReadBatch call. A
// frame is ~2100 datagrams; pulling them in batches of 64 keeps syscall
// overhead well under the frame period at the sensor's configured rate.
const batchSize = 64

// Listener receives SMS UDP datagrams and feeds them through an Assembler,
// emitting completed radar.RadarCube values on Cubes. Structure follows
// banshee-data-velocity.report's internal/lidar/network.UDPListener
// (config struct, context-cancellable Start loop, pluggable stats); the
// batched receive path is this node's own addition, since the teacher's
// LiDAR listener processes one packet per UDP datagram and has no
// equivalent high-rate burst to batch.
type Listener struct {
	address string
	rcvBuf  int
	stats   StatsInterface

	asm   *Assembler
	Cubes chan radar.RadarCube

	conn *net.UDPConn
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Address string
	RcvBuf  int
	Stats   StatsInterface
	OnStat  func(event string)
}

// NewListener constructs a Listener in the not-yet-started state.
func NewListener(cfg ListenerConfig) *Listener {
	stats := cfg.Stats
	if stats == nil {
		stats = noopStats{}
	}
	return &Listener{
		address: cfg.Address,
		rcvBuf:  cfg.RcvBuf,
		stats:   stats,
		asm:     NewAssembler(cfg.OnStat),
		Cubes:   make(chan radar.RadarCube, 4),
	}
}

// Start binds the UDP socket and runs the receive loop until ctx is
// cancelled or a transport error occurs. Intended to run on a dedicated,
// LockOSThread-pinned goroutine (spec §4.E): the batched receive path is
// CPU-bound enough, at sensor frame rates, to justify owning a thread.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return nodeerr.New(nodeerr.ClassConfiguration, "cube.listener", fmt.Errorf("resolve %s: %w", l.address, err))
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nodeerr.New(nodeerr.ClassTransport, "cube.listener", fmt.Errorf("listen %s: %w", l.address, err))
	}
	l.conn = conn
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			log.Printf("cube: warning: failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	defer close(l.Cubes)

	log.Printf("cube: listening on %s (rcvbuf=%d)", l.address, l.rcvBuf)

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagDst, false); err != nil {
		// Not all platforms support control messages on this socket; batched
		// reads still work without them, so this is advisory only.
		log.Printf("cube: SetControlMessage unavailable: %v", err)
	}

	return l.recvLoop(ctx, conn, pc)
}

func (l *Listener) recvLoop(ctx context.Context, conn *net.UDPConn, pc *ipv4.PacketConn) error {
	bufs := make([][]byte, batchSize)
	msgs := make([]ipv4.Message, batchSize)
	for i := range bufs {
		bufs[i] = make([]byte, PacketSize+256)
		msgs[i].Buffers = [][]byte{bufs[i]}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := pc.ReadBatch(msgs, 0)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// ReadBatch isn't supported on every kernel/platform; fall back
			// to the plain single-datagram path for the rest of this run.
			return l.recvLoopFallback(ctx, conn)
		}
		for i := 0; i < n; i++ {
			l.handleDatagram(bufs[i][:msgs[i].N])
		}
	}
}

// recvLoopFallback is the single-datagram receive path used when batched
// reads aren't available, following the teacher's plain ReadFromUDP loop.
func (l *Listener) recvLoopFallback(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, PacketSize+256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("cube: UDP read error: %v", err)
			continue
		}
		l.handleDatagram(buf[:n])
	}
}

func (l *Listener) handleDatagram(raw []byte) {
	l.stats.AddPacket(len(raw))

	p, err := ParsePacket(raw)
	if err != nil {
		l.stats.AddDropped()
		return
	}

	cube, done, err := l.asm.Feed(p)
	if err != nil {
		l.stats.AddDropped()
		return
	}
	if done {
		l.stats.AddCube()
		l.Cubes <- cube
	}
}

// Close releases the UDP socket.
func (l *Listener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
