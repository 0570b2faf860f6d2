package uds

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client issues one-shot queries against an agent's status socket.
type Client struct {
	path    string
	timeout time.Duration
}

func NewClient(path string) *Client {
	return &Client{path: path, timeout: 10 * time.Second}
}

// SetTimeout bounds the whole round trip: dial, write, read.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Send runs one command against the agent. A dial failure usually
// means no agent is listening on the socket.
func (c *Client) Send(command string) (*Reply, error) {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to agent at %s: %w (is the agent running? start it with: logisticsd run)", c.path, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	out, err := json.Marshal(Query{Version: Version, Command: command})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}

	line, err := readLine(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	var reply Reply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}
