// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"fmt"
	"time"

	"github.com/pulsewave/pulsewave/derrors"
	"github.com/pulsewave/pulsewave/service/api"
	"github.com/pulsewave/pulsewave/service/auth"
	"github.com/pulsewave/pulsewave/service/limiter"
	"github.com/pulsewave/pulsewave/service/perf"
	"github.com/pulsewave/pulsewave/service/random"
	"github.com/pulsewave/pulsewave/service/store"
	"github.com/pulsewave/pulsewave/service/ws"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

type Service struct {
	cfg          Config
	apiServer    *api.Server
	wsServer     *ws.Server
	store        store.Store
	auth         *auth.Service
	sessionCache *auth.SessionCache
	admission    *limiter.Limiter
	metrics      *perf.Metrics
	registry     *sessionRegistry
	log          *mlog.Logger

	readerDoneCh chan struct{}
}

func New(cfg Config, log *mlog.Logger) (*Service, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, err
	}

	s := &Service{
		log:          log,
		cfg:          cfg,
		metrics:      perf.NewMetrics("pulsewave", nil),
		registry:     newSessionRegistry(),
		readerDoneCh: make(chan struct{}),
	}

	dbStore, err := store.New(cfg.Store.DataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to create data store: %w", err)
	}
	s.store = dbStore

	s.auth, err = auth.NewService(dbStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth service: %w", err)
	}

	s.sessionCache, err = auth.NewSessionCache(cfg.API.Security.SessionCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	s.admission, err = limiter.New(cfg.Admission, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create admission limiter: %w", err)
	}

	s.apiServer, err = api.NewServer(cfg.API.HTTP, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create api server: %w", err)
	}

	wsConfig := ws.ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingInterval:    10 * time.Second,
	}
	s.wsServer, err = ws.NewServer(wsConfig, log, ws.WithUpgradeCb(s.wsAuthHandler))
	if err != nil {
		return nil, fmt.Errorf("failed to create ws server: %w", err)
	}

	s.apiServer.RegisterHandleFunc("/version", s.getVersion)
	s.apiServer.RegisterHandleFunc("/stats", s.getStats)
	s.apiServer.RegisterHandleFunc("/register", s.registerClient)
	s.apiServer.RegisterHandleFunc("/unregister", s.unregisterClient)
	s.apiServer.RegisterHandleFunc("/login", s.loginClient)
	s.apiServer.RegisterHandler("/metrics", s.metrics.Handler())
	s.apiServer.RegisterHandler("/ws", s.wsServer)

	return s, nil
}

func (s *Service) Start() error {
	if err := s.apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	go s.wsReader()

	s.log.Info("service started", getVersionInfo().logFields()...)

	return nil
}

func (s *Service) Stop() error {
	s.wsServer.Close()
	<-s.readerDoneCh

	if err := s.apiServer.Stop(); err != nil {
		return fmt.Errorf("failed to stop API server: %w", err)
	}

	s.admission.Close()

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.log.Info("service stopped")

	return nil
}

// wsReader is the signaling loop: every frame from every connection flows
// through here, in arrival order.
func (s *Service) wsReader() {
	defer close(s.readerDoneCh)

	for msg := range s.wsServer.ReceiveCh() {
		switch msg.Type {
		case ws.OpenMessage:
			s.handleOpen(msg.ConnID)
		case ws.CloseMessage:
			s.handleClose(msg.ConnID)
		case ws.BinaryMessage:
			s.handleClientMsg(msg)
		default:
			s.log.Debug("dropping frame with unexpected type", mlog.String("connID", msg.ConnID))
		}
	}
}

func (s *Service) handleOpen(connID string) {
	us := s.registry.get(connID)
	if us == nil {
		s.log.Error("open for unknown session", mlog.String("connID", connID))
		return
	}
	s.metrics.IncWSConnections(us.clientID)
	s.log.Debug("ws connection opened",
		mlog.String("connID", connID), mlog.String("clientID", us.clientID))
}

func (s *Service) handleClose(connID string) {
	left, remaining, dropped, clientID := s.dropSession(connID)
	s.metrics.DecWSConnections(clientID)
	if left != nil {
		s.broadcastLeft(left, remaining, dropped)
	}
	s.log.Debug("ws connection closed", mlog.String("connID", connID))
}

func (s *Service) dropSession(connID string) (*session, []*session, bool, string) {
	us := s.registry.get(connID)
	var clientID string
	if us != nil {
		clientID = us.clientID
	}
	left, remaining, dropped := s.registry.remove(connID)
	return left, remaining, dropped, clientID
}

func (s *Service) handleClientMsg(msg ws.Message) {
	var cm ClientMessage
	if err := cm.Unpack(msg.Data); err != nil {
		s.log.Error("failed to unpack message", mlog.Err(err), mlog.String("connID", msg.ConnID))
		s.metrics.IncDispatchErrors("unpack")
		return
	}

	s.metrics.IncWSMessages(cm.Type, "in")

	switch cm.Type {
	case ClientMessageJoin:
		s.handleJoin(msg.ConnID, &cm)
	case ClientMessageLeave:
		s.handleLeave(msg.ConnID)
	case ClientMessageData:
		s.handleData(msg.ConnID, &cm)
	case ClientMessageCallRequest:
		s.handleCallRequest(msg.ConnID, &cm)
	case ClientMessageSubscribe, ClientMessageUnsubscribe:
		// Track subscriptions are negotiated by the media engine, the
		// signaling service only acknowledges receipt.
		s.log.Debug("subscription request", mlog.String("connID", msg.ConnID),
			mlog.String("type", cm.Type))
	default:
		s.log.Debug("dropping message with unknown type",
			mlog.String("type", cm.Type), mlog.String("connID", msg.ConnID))
		s.metrics.IncDispatchErrors("unknown_type")
	}
}

func (s *Service) handleJoin(connID string, cm *ClientMessage) {
	us := s.registry.get(connID)
	if us == nil {
		s.log.Error("join for unknown session", mlog.String("connID", connID))
		return
	}

	decision := s.admission.Check(us.clientID)
	if !decision.Allowed {
		reason := "over_limit"
		if decision.Banned {
			reason = "banned"
			s.metrics.IncLimiterBans()
		}
		s.metrics.IncLimiterDenials(reason)
		s.sendError(connID, derrors.NewRateLimitExceeded(decision.RetryAfter))
		return
	}

	roomID := cm.stringField("roomID")
	if roomID == "" {
		s.sendError(connID, derrors.NewValidation("roomID should not be empty"))
		return
	}
	identity := cm.stringField("identity")
	if identity == "" {
		identity = us.clientID
	}

	joined, others, created, err := s.registry.join(connID, roomID, random.NewID(), identity, cm.stringField("name"))
	if err != nil {
		s.sendError(connID, derrors.NewInvalidState(err.Error()))
		return
	}
	if created {
		s.metrics.IncRooms()
	}
	s.metrics.IncRoomSessions(roomID)

	s.log.Debug("session joined room", mlog.String("connID", connID),
		mlog.String("roomID", roomID), mlog.String("sid", joined.sid))

	otherData := make([]any, 0, len(others))
	for _, other := range others {
		otherData = append(otherData, other.participantData())
	}

	s.sendMsg(connID, NewClientMessage(ClientMessageJoined, map[string]any{
		"room":              s.registry.roomData(roomID),
		"participant":       joined.participantData(),
		"otherParticipants": otherData,
	}))

	for _, other := range others {
		s.sendMsg(other.connID, NewClientMessage(ClientMessageParticipantJoined, map[string]any{
			"participant": joined.participantData(),
		}))
	}
}

func (s *Service) handleLeave(connID string) {
	left, remaining, dropped := s.registry.leave(connID)
	if left == nil {
		return
	}
	s.broadcastLeft(left, remaining, dropped)
}

func (s *Service) broadcastLeft(left *session, remaining []*session, dropped bool) {
	s.metrics.DecRoomSessions(left.roomID)
	if dropped {
		s.metrics.DecRooms()
	}

	for _, other := range remaining {
		s.sendMsg(other.connID, NewClientMessage(ClientMessageParticipantLeft, map[string]any{
			"participant": left.participantData(),
		}))
	}
}

func (s *Service) handleData(connID string, cm *ClientMessage) {
	us := s.registry.get(connID)
	if us == nil || us.roomID == "" {
		s.sendError(connID, derrors.NewInvalidState("session has not joined a room"))
		return
	}

	data := make(map[string]any, len(cm.Data)+1)
	for k, v := range cm.Data {
		data[k] = v
	}
	data["participantSid"] = us.sid

	for _, other := range s.registry.roomMembers(connID) {
		s.sendMsg(other.connID, NewClientMessage(ClientMessageData, data))
	}
}

func (s *Service) handleCallRequest(connID string, cm *ClientMessage) {
	us := s.registry.get(connID)
	if us == nil || us.roomID == "" {
		s.sendError(connID, derrors.NewInvalidState("session has not joined a room"))
		return
	}

	targetSid := cm.stringField("targetSid")
	target := s.registry.findBySid(us.roomID, targetSid)
	if target == nil {
		s.sendError(connID, derrors.NewResourceNotFound("participant", targetSid))
		return
	}

	callID := cm.stringField("callId")
	if callID == "" {
		callID = random.NewID()
	}

	s.sendMsg(target.connID, NewClientMessage(ClientMessageCallReceived, map[string]any{
		"callId":    callID,
		"roomSid":   us.roomID,
		"callerSid": us.sid,
		"targetSid": targetSid,
		"caller":    us.participantData(),
		"metadata":  cm.Data["metadata"],
	}))
}

func (s *Service) sendMsg(connID string, cm *ClientMessage) {
	data, err := cm.Pack()
	if err != nil {
		s.log.Error("failed to pack message", mlog.Err(err), mlog.String("connID", connID))
		return
	}
	s.metrics.IncWSMessages(cm.Type, "out")
	if err := s.wsServer.Send(ws.Message{
		ConnID: connID,
		Type:   ws.BinaryMessage,
		Data:   data,
	}); err != nil {
		s.log.Error("failed to send message", mlog.Err(err), mlog.String("connID", connID))
	}
}

func (s *Service) sendError(connID string, derr *derrors.Error) {
	s.log.Debug("sending error to client", mlog.String("connID", connID),
		mlog.String("code", string(derr.Code)))
	s.sendMsg(connID, NewClientMessage(ClientMessageError, map[string]any{
		"name":    derr.Name(),
		"code":    string(derr.Code),
		"message": derr.Message,
		"context": derr.Context,
	}))
}
