package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/pm25-intent/internal/connection"
	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/protocol"
	"github.com/smukkama/pm25-intent/internal/queue"
	"github.com/smukkama/pm25-intent/internal/timer"
	"github.com/smukkama/pm25-intent/pkg/config"
)

// readTimeout bounds one blocking read so the loop can notice Stop
const readTimeout = 30 * time.Second

// FixStore is satisfied by *fixstore.Store
type FixStore interface {
	SaveFix(ctx context.Context, deviceID string, fix location.Fix) (bool, error)
	DeleteFix(ctx context.Context, deviceID string) error
}

// GrantWriter is satisfied by *database.DB
type GrantWriter interface {
	UpsertGrant(ctx context.Context, deviceID string, status location.AuthorizationStatus) error
}

// Gateway is the TCP server devices connect to. It stores what devices
// report, runs invocations for them and forwards queued requests.
type Gateway struct {
	config       *config.TCPServerConfig
	connManager  *connection.Manager
	timerManager *timer.TimerManager
	fixes        FixStore
	grants       GrantWriter
	pool         *InvokePool
	logger       *slog.Logger
	listener     net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewGateway creates a new gateway
func NewGateway(
	cfg *config.TCPServerConfig,
	connManager *connection.Manager,
	timerManager *timer.TimerManager,
	fixes FixStore,
	grants GrantWriter,
	invoker Invoker,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		config:       cfg,
		connManager:  connManager,
		timerManager: timerManager,
		fixes:        fixes,
		grants:       grants,
		logger:       logger,
		conns:        make(map[net.Conn]struct{}),
		stopCh:       make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	g.pool = NewInvokePool(invoker, cfg.Workers, cfg.Workers*8, logger)
	return g
}

// Start starts listening and the invocation workers
func (g *Gateway) Start() error {
	addr := fmt.Sprintf(":%d", g.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	g.listener = listener
	g.logger.Info("gateway listening", "addr", listener.Addr().String(), "workers", g.pool.workerCount)

	g.pool.Start(g.ctx)

	g.wg.Add(1)
	go g.acceptConnections()

	return nil
}

// Addr returns the bound address, useful when Port is 0
func (g *Gateway) Addr() net.Addr {
	return g.listener.Addr()
}

// Stop stops accepting, closes every connection and waits for workers
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopCh)
		g.cancel()

		if g.listener != nil {
			g.listener.Close()
		}

		g.connsMu.Lock()
		for conn := range g.conns {
			conn.Close()
		}
		g.connsMu.Unlock()

		g.wg.Wait()
		g.pool.Stop()
		g.logger.Info("gateway stopped")
	})
}

// Deliver implements queue.Deliverer
func (g *Gateway) Deliver(ctx context.Context, req *protocol.LocationRequest) error {
	client, ok := g.connManager.Latest(req.DeviceID)
	if !ok {
		return queue.ErrDeviceNotConnected
	}
	return g.send(client, protocol.NewRequestMessage(req))
}

func (g *Gateway) acceptConnections() {
	defer g.wg.Done()

	for {
		conn, err := g.listener.Accept()
		if err != nil {
			select {
			case <-g.stopCh:
				return
			default:
				g.logger.Error("failed to accept connection", "error", err)
				continue
			}
		}

		if g.connManager.Count() >= g.config.MaxConnections {
			g.logger.Warn("maximum connections reached, rejecting connection", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		g.track(conn, true)
		g.wg.Add(1)
		go g.handleConnection(conn)
	}
}

func (g *Gateway) track(conn net.Conn, add bool) {
	g.connsMu.Lock()
	defer g.connsMu.Unlock()
	if add {
		g.conns[conn] = struct{}{}
	} else {
		delete(g.conns, conn)
	}
}

func (g *Gateway) handleConnection(conn net.Conn) {
	defer g.wg.Done()
	defer g.track(conn, false)
	defer conn.Close()

	// cancelled when the device goes away, aborting its invocations
	ctx, cancel := context.WithCancel(g.ctx)
	defer cancel()

	connectionID := uuid.New().String()
	logger := g.logger.With("connection_id", connectionID)
	logger.Debug("new connection", "remote", conn.RemoteAddr().String())

	conn.SetReadDeadline(time.Now().Add(g.config.IdentifyTimeout))

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		logger.Debug("failed to read identify message", "error", err)
		return
	}

	msg, err := protocol.ParseMessage([]byte(line))
	if err != nil {
		logger.Warn("failed to parse identify message", "error", err)
		g.sendRaw(conn, protocol.NewErrorMessage(err))
		return
	}

	identifyMsg, ok := msg.(*protocol.IdentifyMessage)
	if !ok {
		logger.Warn("expected identify message", "got", fmt.Sprintf("%T", msg))
		g.sendRaw(conn, protocol.NewErrorMessage(errors.New("expected identify message")))
		return
	}

	if err := g.connManager.Register(connectionID, identifyMsg.DeviceID, identifyMsg.Name, conn); err != nil {
		logger.Warn("failed to register device", "error", err)
		g.sendRaw(conn, protocol.NewErrorMessage(err))
		return
	}
	defer g.connManager.Unregister(connectionID)

	client, _ := g.connManager.Get(connectionID)
	logger = logger.With("device_id", identifyMsg.DeviceID)
	logger.Info("device identified", "name", identifyMsg.Name)

	if err := g.send(client, protocol.NewAckMessage(protocol.AckStatusIdentified)); err != nil {
		logger.Warn("failed to send ack", "error", err)
		return
	}

	timerID := inactivityTimerID(connectionID)
	g.scheduleInactivityTimer(connectionID, logger)
	defer g.timerManager.Cancel(timerID)

	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			logger.Info("connection closed", "error", err)
			return
		}

		if !g.timerManager.Postpone(timerID, g.config.InactivityTimeout) {
			logger.Debug("inactivity timer already fired")
			return
		}

		msg, err := protocol.ParseMessage([]byte(line))
		if err != nil {
			logger.Warn("failed to parse message", "error", err)
			if err := g.send(client, protocol.NewErrorMessage(err)); err != nil {
				logger.Warn("failed to send error ack", "error", err)
				return
			}
			continue
		}

		if err := g.handleMessage(ctx, client, msg, logger); err != nil {
			logger.Warn("failed to handle message", "error", err)
		}
	}
}

func (g *Gateway) handleMessage(ctx context.Context, client *connection.ClientInfo, msg interface{}, logger *slog.Logger) error {
	switch m := msg.(type) {
	case *protocol.LocationMessage:
		return g.handleLocation(ctx, client, m, logger)

	case *protocol.AuthorizationMessage:
		return g.handleAuthorization(ctx, client, m, logger)

	case *protocol.InvokeMessage:
		return g.handleInvoke(ctx, client, m)

	case *protocol.KeepaliveMessage:
		return g.send(client, protocol.NewAckMessage(protocol.AckStatusAlive))

	case *protocol.IdentifyMessage:
		return g.send(client, protocol.NewErrorMessage(errors.New("already identified")))

	default:
		return fmt.Errorf("unknown message type: %T", msg)
	}
}

func (g *Gateway) handleLocation(ctx context.Context, client *connection.ClientInfo, msg *protocol.LocationMessage, logger *slog.Logger) error {
	fix, err := msg.Fix()
	if err != nil {
		return g.send(client, protocol.NewErrorMessage(err))
	}

	written, err := g.fixes.SaveFix(ctx, client.DeviceID, fix)
	if err != nil {
		g.send(client, protocol.NewErrorMessage(errors.New("failed to store location")))
		return fmt.Errorf("failed to save fix: %w", err)
	}

	logger.Debug("location received", "coordinate", fix.Coordinate.String(), "accuracy", fix.Accuracy, "stored", written)
	return g.send(client, protocol.NewAckMessage(protocol.AckStatusStored))
}

func (g *Gateway) handleAuthorization(ctx context.Context, client *connection.ClientInfo, msg *protocol.AuthorizationMessage, logger *slog.Logger) error {
	status, err := location.ParseStatus(msg.Status)
	if err != nil {
		return g.send(client, protocol.NewErrorMessage(err))
	}

	if err := g.grants.UpsertGrant(ctx, client.DeviceID, status); err != nil {
		g.send(client, protocol.NewErrorMessage(errors.New("failed to store authorization")))
		return fmt.Errorf("failed to store grant: %w", err)
	}

	// a revoked permission must not leave a usable fix behind
	if status.Refused() {
		if err := g.fixes.DeleteFix(ctx, client.DeviceID); err != nil {
			g.send(client, protocol.NewErrorMessage(errors.New("failed to store authorization")))
			return fmt.Errorf("failed to forget fix: %w", err)
		}
	}

	logger.Info("authorization updated", "status", status)
	return g.send(client, protocol.NewAckMessage(protocol.AckStatusStored))
}

func (g *Gateway) handleInvoke(ctx context.Context, client *connection.ClientInfo, msg *protocol.InvokeMessage) error {
	job := &InvokeJob{
		Ctx:       ctx,
		Client:    client,
		RequestID: msg.ID,
		Timestamp: time.Now(),
		reply:     g.send,
	}
	if err := g.pool.Submit(job); err != nil {
		g.send(client, protocol.NewErrorMessage(err))
		return err
	}
	return nil
}

func (g *Gateway) send(client *connection.ClientInfo, msg interface{}) error {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return err
	}
	return client.Send(data)
}

// sendRaw is used before the device is registered
func (g *Gateway) sendRaw(conn net.Conn, msg interface{}) {
	data, err := protocol.EncodeMessage(msg)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.Write(append(data, '\n'))
}

func inactivityTimerID(connectionID string) string {
	return "inactivity-" + connectionID
}

func (g *Gateway) scheduleInactivityTimer(connectionID string, logger *slog.Logger) {
	callback := func() {
		client, exists := g.connManager.Get(connectionID)
		if !exists {
			return
		}
		logger.Info("inactivity timeout")
		// Unregister happens in the connection's deferred cleanup
		client.Conn.Close()
	}

	if err := g.timerManager.ScheduleAfter(inactivityTimerID(connectionID), g.config.InactivityTimeout, callback); err != nil {
		logger.Warn("failed to schedule inactivity timer", "error", err)
	}
}
