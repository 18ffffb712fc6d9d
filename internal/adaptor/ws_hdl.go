package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"tcg-server/internal/dto/request"
	"tcg-server/internal/dto/response"
	"tcg-server/internal/usecase"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const (
	wsMaxPayloadBytes = 64 << 10
	wsMessageTimeout  = 15 * time.Second
)

// WSHandler speaks the JSON action protocol used by the game client. Each
// connection gets its own AuthManager so tokens never leak across clients.
type WSHandler struct {
	service   usecase.AuthService
	hub       *wsHub
	version   string
	startedAt time.Time
	now       func() time.Time
	log       *zap.Logger

	// baseCtx outlives requests; Shutdown cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc

	actions map[string]wsAction
}

type wsAction func(ctx context.Context, client *wsClient, msg *request.WSMessage) response.WSResponse

func NewWSHandler(service usecase.AuthService, version string, log *zap.Logger) *WSHandler {
	baseCtx, cancel := context.WithCancel(context.Background())
	h := &WSHandler{
		service:   service,
		hub:       newWSHub(),
		version:   version,
		startedAt: time.Now(),
		now:       time.Now,
		log:       log.With(zap.String("handler", "websocket")),
		baseCtx:   baseCtx,
		cancel:    cancel,
	}

	h.actions = map[string]wsAction{
		"ping":              h.ping,
		"register":          h.register,
		"login":             h.login,
		"logout":            h.logout,
		"get_user_info":     h.getUserInfo,
		"change_password":   h.changePassword,
		"delete_account":    h.deleteAccount,
		"get_server_status": h.serverStatus,
	}
	return h
}

// ServeHTTP upgrades the request. Any origin is accepted since the game
// client is not a browser.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server := websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.handleConn,
	}
	server.ServeHTTP(w, r)
}

// Shutdown cancels in-flight actions and closes every open connection.
// http.Server.Shutdown does not track hijacked connections, so the server
// registers this as a shutdown hook.
func (h *WSHandler) Shutdown() {
	h.cancel()
	closed := h.hub.closeAll()
	h.log.Info("Websocket connections closed", zap.Int("count", closed))
}

func (h *WSHandler) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = wsMaxPayloadBytes

	req := conn.Request()
	client := &wsClient{
		id:      req.RemoteAddr,
		conn:    conn,
		manager: usecase.NewAuthManager(h.service, h.log),
	}
	h.hub.add(client)
	defer h.hub.remove(client)

	if h.baseCtx.Err() != nil {
		return
	}

	log := h.log.With(zap.String("client", client.id))
	log.Info("Client connected")

	welcome := response.WSWelcome{
		Type:          "welcome",
		Message:       "Connected to the TCG server",
		ServerVersion: h.version,
		Timestamp:     h.now(),
	}
	if err := websocket.JSON.Send(conn, welcome); err != nil {
		log.Warn("Failed to send welcome", zap.Error(err))
		return
	}

	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			switch {
			case h.baseCtx.Err() != nil:
				log.Info("Client closed on shutdown")
			case errors.Is(err, io.EOF):
				log.Info("Client disconnected")
			default:
				log.Warn("Websocket read failed", zap.Error(err))
			}
			return
		}

		resp := h.handleMessage(h.baseCtx, client, raw)
		if err := websocket.JSON.Send(conn, resp); err != nil {
			log.Warn("Websocket write failed", zap.Error(err))
			return
		}
	}
}

// handleMessage decodes one frame and runs its action. A panic in an
// action is reported to the client and the connection survives.
func (h *WSHandler) handleMessage(ctx context.Context, client *wsClient, raw string) (resp response.WSResponse) {
	var msg request.WSMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return wsError(CodeInvalidJSON, "message is not valid JSON")
	}
	msg.Action = strings.TrimSpace(msg.Action)

	action, ok := h.actions[msg.Action]
	if !ok {
		resp = wsError(CodeUnknownAction, "unknown action: "+msg.Action)
		resp.AvailableActions = h.availableActions()
		return resp
	}

	defer func() {
		if p := recover(); p != nil {
			h.log.Error("PANIC in websocket action",
				zap.Any("error", p),
				zap.String("action", msg.Action),
				zap.Stack("stack"))
			resp = wsError(CodeServerError, usecase.MsgInternalError)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, wsMessageTimeout)
	defer cancel()

	if msg.Token != "" {
		client.manager.SetToken(msg.Token)
	}

	resp = action(ctx, client, &msg)
	if resp.Action == "" {
		resp.Action = msg.Action
	}
	return resp
}

func (h *WSHandler) ping(_ context.Context, _ *wsClient, _ *request.WSMessage) response.WSResponse {
	now := h.now()
	return response.WSResponse{Success: true, Action: "pong", Timestamp: &now}
}

func (h *WSHandler) register(ctx context.Context, client *wsClient, msg *request.WSMessage) response.WSResponse {
	user, err := client.manager.Register(ctx, msg.RegisterRequest())
	if err != nil {
		return wsServiceError(err)
	}
	return response.WSResponse{
		Success: true,
		Message: "registration successful, please log in",
		User:    user,
	}
}

func (h *WSHandler) login(ctx context.Context, client *wsClient, msg *request.WSMessage) response.WSResponse {
	resp, err := client.manager.Login(ctx, msg.LoginRequest(clientIP(client.id)))
	if err != nil {
		return wsServiceError(err)
	}
	return response.WSResponse{
		Success:   true,
		Message:   "login successful",
		Token:     resp.Token,
		ExpiresAt: &resp.ExpiresAt,
		User:      &resp.User,
	}
}

// logout always succeeds, with or without a live session.
func (h *WSHandler) logout(ctx context.Context, client *wsClient, _ *request.WSMessage) response.WSResponse {
	client.manager.Logout(ctx)
	return response.WSResponse{Success: true, Message: "logged out"}
}

func (h *WSHandler) getUserInfo(ctx context.Context, client *wsClient, _ *request.WSMessage) response.WSResponse {
	if client.manager.Token() == "" {
		return wsError(CodeMissingToken, usecase.MsgLoginRequired)
	}

	user, err := client.manager.UserInfo(ctx)
	if err != nil {
		return wsServiceError(err)
	}
	return response.WSResponse{Success: true, User: user}
}

func (h *WSHandler) changePassword(ctx context.Context, client *wsClient, msg *request.WSMessage) response.WSResponse {
	if client.manager.Token() == "" {
		return wsError(CodeMissingToken, usecase.MsgLoginRequired)
	}

	if err := client.manager.ChangePassword(ctx, msg.ChangePasswordRequest()); err != nil {
		return wsServiceError(err)
	}
	return response.WSResponse{Success: true, Message: "password changed"}
}

func (h *WSHandler) deleteAccount(ctx context.Context, client *wsClient, msg *request.WSMessage) response.WSResponse {
	if client.manager.Token() == "" {
		return wsError(CodeMissingToken, usecase.MsgLoginRequired)
	}

	if err := client.manager.DeleteAccount(ctx, msg.DeleteAccountRequest()); err != nil {
		return wsServiceError(err)
	}
	return response.WSResponse{Success: true, Message: "account deleted"}
}

func (h *WSHandler) serverStatus(ctx context.Context, _ *wsClient, _ *request.WSMessage) response.WSResponse {
	connected, authenticated := h.hub.counts()

	users, err := h.service.CountUsers(ctx)
	if err != nil {
		// status still answers without the user count
		users = -1
	}

	return response.WSResponse{
		Success: true,
		Status: &response.ServerStatus{
			Version:              h.version,
			UptimeSeconds:        int64(h.now().Sub(h.startedAt).Seconds()),
			ConnectedClients:     connected,
			AuthenticatedClients: authenticated,
			RegisteredUsers:      users,
			Status:               "running",
		},
	}
}

func (h *WSHandler) availableActions() []string {
	return []string{
		"ping",
		"register",
		"login",
		"logout",
		"get_user_info",
		"change_password",
		"delete_account",
		"get_server_status",
	}
}

func wsError(code, message string) response.WSResponse {
	return response.WSResponse{Success: false, Error: code, Message: message}
}

func wsServiceError(err error) response.WSResponse {
	return wsError(errorCode(err), usecase.UserMessage(err))
}
