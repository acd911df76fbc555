// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package ws

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pulsewave/pulsewave/service/random"

	"github.com/gorilla/websocket"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

const (
	sendChSize    = 256
	receiveChSize = 256
	writeWaitTime = 10 * time.Second
)

type UpgradeCb func(connID string, w http.ResponseWriter, r *http.Request) error

type Server struct {
	cfg       ServerConfig
	log       mlog.LoggerIFace
	conns     map[string]*conn
	upgradeCb UpgradeCb
	sendCh    chan Message
	receiveCh chan Message
	closed    bool

	mut sync.RWMutex
}

func NewServer(cfg ServerConfig, log mlog.LoggerIFace, opts ...Option) (*Server, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	s := &Server{
		cfg:       cfg,
		log:       log,
		conns:     make(map[string]*conn),
		sendCh:    make(chan Message, sendChSize),
		receiveCh: make(chan Message, receiveChSize),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	go s.connWriter()

	return s, nil
}

// Send queues a message for delivery on the given connection.
func (s *Server) Send(msg Message) error {
	s.mut.RLock()
	defer s.mut.RUnlock()

	if s.closed {
		return fmt.Errorf("server is closed")
	}

	select {
	case s.sendCh <- msg:
	default:
		return fmt.Errorf("failed to send message: channel is full")
	}

	return nil
}

func (s *Server) ReceiveCh() <-chan Message {
	return s.receiveCh
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := random.NewID()

	sendOpenMsg := func() {
		s.receiveCh <- newOpenMessage(connID)
	}
	sendCloseMsg := func() {
		s.receiveCh <- newCloseMessage(connID)
	}

	if s.upgradeCb != nil {
		if err := s.upgradeCb(connID, w, r); err != nil {
			s.log.Error("upgradeCb failed", mlog.Err(err))
			return
		}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.WriteBufferSize,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("failed to upgrade connection", mlog.Err(err))
		sendCloseMsg()
		return
	}
	ws.SetReadLimit(connMaxReadBytes)

	conn := newConn(connID, "", ws)
	defer conn.close()
	defer close(conn.closeCh)
	s.addConn(conn)

	sendOpenMsg()

	defer s.removeConn(conn.id)
	defer sendCloseMsg()

	// Connections that miss two pings in a row are considered dead and
	// get dropped by the read deadline.
	if err := ws.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval)); err != nil {
		s.log.Error("failed to set read deadline", mlog.Err(err), mlog.String("connID", connID))
	}
	ws.SetPongHandler(func(_ string) error {
		return ws.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	go func() {
		pingTicker := time.NewTicker(s.cfg.PingInterval)
		defer pingTicker.Stop()
		for {
			select {
			case <-pingTicker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWaitTime)); err != nil {
					return
				}
			case <-conn.closeCh:
				return
			}
		}
	}()

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			s.log.Debug("ws read failed", mlog.Err(err), mlog.String("connID", connID))
			break
		}

		var msgType MessageType
		if mt == websocket.TextMessage {
			msgType = TextMessage
		} else if mt == websocket.BinaryMessage {
			msgType = BinaryMessage
		}
		s.receiveCh <- Message{
			ConnID: connID,
			Type:   msgType,
			Data:   data,
		}
	}
}

func (s *Server) Close() {
	s.mut.Lock()
	if s.closed {
		s.mut.Unlock()
		return
	}
	s.closed = true
	s.mut.Unlock()

	conns := s.getConns()
	for _, conn := range conns {
		if err := conn.close(); err != nil {
			s.log.Error("failed to close ws conn", mlog.Err(err))
		}
		<-conn.closeCh
	}

	s.mut.Lock()
	defer s.mut.Unlock()
	close(s.receiveCh)
	close(s.sendCh)
}

func (s *Server) connWriter() {
	for msg := range s.sendCh {
		conn := s.getConn(msg.ConnID)
		if conn == nil {
			s.log.Error("failed to get conn for sending", mlog.String("connID", msg.ConnID))
			continue
		}

		var msgType int
		if msg.Type == TextMessage {
			msgType = websocket.TextMessage
		} else if msg.Type == BinaryMessage {
			msgType = websocket.BinaryMessage
		} else if msg.Type == CloseMessage {
			msgType = websocket.CloseMessage
		}

		if err := conn.ws.SetWriteDeadline(time.Now().Add(writeWaitTime)); err != nil {
			s.log.Error("failed to set write deadline", mlog.String("connID", msg.ConnID), mlog.Err(err))
		}
		if err := conn.ws.WriteMessage(msgType, msg.Data); err != nil {
			s.log.Error("failed to write message", mlog.String("connID", msg.ConnID), mlog.Err(err))
		}
	}
}
