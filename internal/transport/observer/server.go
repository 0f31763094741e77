package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"voxelstore.ai/internal/observerproto"
	"voxelstore.ai/internal/sim/world"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
)

// Server streams read-only frame and chunk updates to observer clients.
type Server struct {
	world *world.World
	log   *log.Logger

	// AllowRemote disables the loopback-only check (tests, trusted networks).
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Bootstrap builds the bootstrap document from the world's config and last metrics.
func (s *Server) Bootstrap() observerproto.BootstrapResponse {
	cfg := s.world.Config()
	m := s.world.Metrics()
	var seed int64
	if cfg.Gen != nil {
		seed = cfg.Gen.Seed
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         cfg.ID,
		Frame:           m.Frame,
		WorldParams: observerproto.WorldParams{
			FrameRateHz: cfg.FrameRateHz,
			ChunkSide:   cfg.ChunkSide,
			ChunkTiles:  cfg.ChunkTiles,
			TableSize:   cfg.TableSize,
			SimSpan:     cfg.SimSpan.Array(),
			Seed:        seed,
		},
		TilePalette: genpkg.Palette(),
		Store: observerproto.StoreInfo{
			Chunks:     m.Chunks,
			Entities:   m.LiveEntities,
			Blocks:     m.Blocks,
			FreeBlocks: m.FreeBlocks,
			Bytes:      m.StoreBytes,
			Size:       humanize.Bytes(m.StoreBytes),
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.Bootstrap())
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, error) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, err
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, fmt.Errorf("expected %s v%s", observerproto.TypeSubscribe, observerproto.Version)
	}
	if sub.MaxChunks < 0 {
		sub.MaxChunks = 0
	}
	return sub, nil
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, err := parseSubscribe(msg)
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(time.Second))
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		frameOut := make(chan []byte, 8)
		dataOut := make(chan []byte, 1024)

		joinReq := world.ObserverJoinRequest{
			SessionID: sid,
			FrameOut:  frameOut,
			DataOut:   dataOut,
			Chunks:    sub.Chunks,
			MaxChunks: sub.MaxChunks,
		}
		select {
		case s.world.ObserverJoin() <- joinReq:
		default:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		if s.log != nil {
			s.log.Printf("observer %s joined (chunks=%v)", sid, sub.Chunks)
		}
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
				// World loop is stopping; nothing else to do.
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				var (
					b  []byte
					ok bool
				)
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok = <-dataOut:
				case b, ok = <-frameOut:
				}
				if !ok {
					writeErr <- nil
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			sub, err := parseSubscribe(msg)
			if err != nil {
				continue
			}
			req := world.ObserverSubscribeRequest{
				SessionID: sid,
				Chunks:    sub.Chunks,
				MaxChunks: sub.MaxChunks,
			}
			select {
			case s.world.ObserverSubscribe() <- req:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
