package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oursky/pi-fleet-manager/pkg/utils/httputil"

	"go.uber.org/zap"
)

// Client talks to the HTTP API every agent exposes. Its methods never
// return errors: every failure is folded into the returned outcome.
type Client struct {
	logger         *zap.Logger
	client         *http.Client
	port           int
	statusTimeout  time.Duration
	commandTimeout time.Duration
}

func NewClient(logger *zap.Logger, config *Config, client *http.Client) *Client {
	return &Client{
		logger:         logger.Named("agent-client"),
		client:         client,
		port:           config.GetPort(),
		statusTimeout:  config.GetStatusTimeout(),
		commandTimeout: config.GetCommandTimeout(),
	}
}

func (c *Client) endpoint(ip string, path string) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(ip, strconv.Itoa(c.port)),
		Path:   path,
	}
	return u.String()
}

var errNotObject = errors.New("response is not a JSON object")

func decodeObject(r io.Reader) (map[string]any, error) {
	var obj map[string]any
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

func (c *Client) QueryStatus(ctx context.Context, agent Agent) StatusOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	logger := c.logger.With(zap.String("ip", agent.IP))

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(agent.IP, "/status"), nil)
	if err != nil {
		logger.Debug("invalid status request", zap.Error(err))
		return Offline(agent)
	}

	resp, err := c.client.Do(r)
	if err != nil {
		logger.Debug("agent unreachable", zap.Error(err))
		return Offline(agent)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		logger.Debug("agent status failed", zap.Error(err))
		return Offline(agent)
	}

	data, err := decodeObject(resp.Body)
	if err != nil {
		logger.Debug("malformed status response", zap.Error(err))
		return Offline(agent)
	}

	return StatusOutcome{
		IP:     agent.IP,
		Name:   agent.Name,
		Online: true,
		Data:   data,
	}
}

// SendCommand posts cmd to the agent at ip. Any decodable reply counts as
// success, whatever its status code; the code is kept in StatusCode.
func (c *Client) SendCommand(ctx context.Context, ip string, cmd Command) CommandOutcome {
	if _, ok := commandKinds[cmd.Kind]; !ok {
		return Failed(ip, fmt.Errorf("unknown command: %q", cmd.Kind))
	}

	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	logger := c.logger.With(zap.String("ip", ip), zap.String("command", string(cmd.Kind)))

	payload, err := cmd.body()
	if err != nil {
		return Failed(ip, err)
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(ip, cmd.path()), body)
	if err != nil {
		return Failed(ip, err)
	}
	if payload != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(r)
	if err != nil {
		logger.Warn("failed to send command", zap.Error(err))
		return Failed(ip, err)
	}
	defer resp.Body.Close()

	data, err := decodeObject(resp.Body)
	if err != nil {
		logger.Warn("malformed command response", zap.Error(err), zap.Int("status", resp.StatusCode))
		return Failed(ip, fmt.Errorf("invalid response from agent (status %d): %w", resp.StatusCode, err))
	}

	logger.Info("command sent", zap.Int("status", resp.StatusCode))
	return CommandOutcome{
		IP:         ip,
		Success:    true,
		Response:   data,
		StatusCode: resp.StatusCode,
	}
}
