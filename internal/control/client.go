package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends control commands to a running orchestrator
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new control client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    10 * time.Second,
	}
}

// SetTimeout sets the client timeout for commands
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command to the orchestrator and waits for the response
func (c *Client) SendCommand(cmd Command) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to orchestrator (is it running?): %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, nil
}

// Pause sends a pause command for the specified session
func (c *Client) Pause(sessionID, reason string) (*Response, error) {
	return c.SendCommand(Command{
		Type:      CommandPause,
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// Resume sends a resume command for the specified session
func (c *Client) Resume(sessionID string) (*Response, error) {
	return c.SendCommand(Command{
		Type:      CommandResume,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}

// Stop sends a stop command for the specified session
func (c *Client) Stop(sessionID, reason string) (*Response, error) {
	return c.SendCommand(Command{
		Type:      CommandStop,
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// Status requests the current session status
func (c *Client) Status(sessionID string) (*Response, error) {
	return c.SendCommand(Command{
		Type:      CommandStatus,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}
