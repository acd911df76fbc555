// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pulsewave/pulsewave/service/ws"
)

const (
	msgChSize = 64
)

// Client is a programmatic client for the service's HTTP and signaling
// APIs, used by operators and tests.
type Client struct {
	cfg *ClientConfig

	httpClient *http.Client
	wsClient   *ws.Client
	wsDoneCh   chan struct{}
	receiveCh  chan ClientMessage
	errorCh    chan error
	dialFn     DialContextFn
	closed     bool

	mut sync.Mutex
}

func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	var c Client

	if err := cfg.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.cfg = &cfg

	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if c.dialFn == nil {
		c.dialFn = (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           c.dialFn,
		MaxConnsPerHost:       100,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   1 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c.httpClient = &http.Client{Transport: transport}

	return &c, nil
}

func (c *Client) Register(clientID string) (string, error) {
	if c.httpClient == nil {
		return "", fmt.Errorf("http client is not initialized")
	}

	reqData := map[string]string{
		"clientID": clientID,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqData); err != nil {
		return "", fmt.Errorf("failed to encode body: %w", err)
	}

	req, err := http.NewRequest("POST", c.cfg.httpURL+"/register", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.AuthKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respData := map[string]string{}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("decoding http response failed: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		if errMsg := respData["error"]; errMsg != "" {
			return "", fmt.Errorf("request failed: %s", errMsg)
		}
		return "", fmt.Errorf("request failed with status %s", resp.Status)
	}

	authKey := respData["authKey"]
	if authKey == "" {
		return "", fmt.Errorf("unexpected empty auth key")
	}

	return authKey, nil
}

func (c *Client) Unregister(clientID string) error {
	if c.httpClient == nil {
		return fmt.Errorf("http client is not initialized")
	}

	reqData := map[string]string{
		"clientID": clientID,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqData); err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}

	req, err := http.NewRequest("POST", c.cfg.httpURL+"/unregister", &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.AuthKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respData := map[string]string{}
		if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
			return fmt.Errorf("decoding http response failed: %w", err)
		}

		if errMsg := respData["error"]; errMsg != "" {
			return fmt.Errorf("request failed: %s", errMsg)
		}
		return fmt.Errorf("request failed with status %s", resp.Status)
	}

	return nil
}

// Login exchanges the configured credentials for a bearer token.
func (c *Client) Login() (string, error) {
	if c.httpClient == nil {
		return "", fmt.Errorf("http client is not initialized")
	}

	req, err := http.NewRequest("POST", c.cfg.httpURL+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.AuthKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respData := map[string]string{}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("decoding http response failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if errMsg := respData["error"]; errMsg != "" {
			return "", fmt.Errorf("request failed: %s", errMsg)
		}
		return "", fmt.Errorf("request failed with status %s", resp.Status)
	}

	token := respData["bearerToken"]
	if token == "" {
		return "", fmt.Errorf("unexpected empty token")
	}

	return token, nil
}

func (c *Client) GetVersionInfo() (VersionInfo, error) {
	var info VersionInfo

	if c.httpClient == nil {
		return info, fmt.Errorf("http client is not initialized")
	}

	resp, err := c.httpClient.Get(c.cfg.httpURL + "/version")
	if err != nil {
		return info, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("request failed with status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("decoding http response failed: %w", err)
	}

	return info, nil
}

// Stats is a snapshot of the service's signaling and admission state.
type Stats struct {
	Sessions  int            `json:"sessions"`
	Rooms     int            `json:"rooms"`
	Admission AdmissionStats `json:"admission"`
}

type AdmissionStats struct {
	Entries       int `json:"entries"`
	Banned        int `json:"banned"`
	TotalRequests int `json:"totalRequests"`
}

func (c *Client) GetStats() (Stats, error) {
	var stats Stats

	if c.httpClient == nil {
		return stats, fmt.Errorf("http client is not initialized")
	}

	req, err := http.NewRequest("GET", c.cfg.httpURL+"/stats", nil)
	if err != nil {
		return stats, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.AuthKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stats, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("request failed with status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("decoding http response failed: %w", err)
	}

	return stats, nil
}

func (c *Client) Connect() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		return fmt.Errorf("ws client is closed")
	}

	if c.wsClient != nil {
		return fmt.Errorf("ws client is already initialized")
	}

	wsClient, err := ws.NewClient(ws.ClientConfig{
		URL:       c.cfg.wsURL,
		AuthType:  ws.BasicClientAuthType,
		AuthToken: base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.AuthKey)),
	}, ws.WithDialFunc(ws.DialContextFn(c.dialFn)))
	if err != nil {
		return fmt.Errorf("failed to create ws client: %w", err)
	}

	c.wsClient = wsClient
	c.wsDoneCh = make(chan struct{})
	c.receiveCh = make(chan ClientMessage, msgChSize)
	c.errorCh = make(chan error)

	go func() {
		defer close(c.wsDoneCh)
		c.msgReader()
	}()

	go func() {
		for err := range c.wsClient.ErrorCh() {
			c.sendError(err)
		}
		<-c.wsDoneCh
		close(c.errorCh)
	}()

	return nil
}

// Join asks the service to place this connection in the given room.
func (c *Client) Join(roomID, identity string) error {
	return c.Send(*NewClientMessage(ClientMessageJoin, map[string]any{
		"roomID":   roomID,
		"identity": identity,
	}))
}

// Leave removes this connection from its room.
func (c *Client) Leave() error {
	return c.Send(*NewClientMessage(ClientMessageLeave, nil))
}

func (c *Client) Send(msg ClientMessage) error {
	c.mut.Lock()
	if c.closed {
		c.mut.Unlock()
		return fmt.Errorf("ws client is closed")
	}
	if c.wsClient == nil {
		c.mut.Unlock()
		return fmt.Errorf("ws client is not initialized")
	}
	c.mut.Unlock()

	data, err := msg.Pack()
	if err != nil {
		return fmt.Errorf("failed to pack message: %w", err)
	}
	return c.wsClient.Send(ws.BinaryMessage, data)
}

func (c *Client) ReceiveCh() <-chan ClientMessage {
	return c.receiveCh
}

func (c *Client) ErrorCh() <-chan error {
	return c.errorCh
}

func (c *Client) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.closed {
		return fmt.Errorf("ws client is closed")
	}
	c.closed = true

	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}

	if c.wsClient != nil {
		err := c.wsClient.Close()
		<-c.wsDoneCh
		close(c.receiveCh)
		return err
	}

	return nil
}

func (c *Client) sendError(err error) {
	select {
	case c.errorCh <- err:
	default:
		log.Printf("failed to send error: channel is full")
	}
}

func (c *Client) msgReader() {
	for msg := range c.wsClient.ReceiveCh() {
		if msg.Type != ws.BinaryMessage {
			c.sendError(fmt.Errorf("unexpected msg type: %d", msg.Type))
			continue
		}

		var cm ClientMessage
		if err := cm.Unpack(msg.Data); err != nil {
			c.sendError(fmt.Errorf("failed to unpack message: %w", err))
			continue
		}

		select {
		case c.receiveCh <- cm:
		default:
			c.sendError(fmt.Errorf("failed to send client message: channel is full"))
		}
	}
}
