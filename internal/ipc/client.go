package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client calls the control service of a running pipeline.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

// Status returns a snapshot of the pipeline.
func (c *Client) Status() (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.rpc.Call(serviceName+".Status", StatusRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Stop requests shutdown. With wait set the reply arrives only after queued
// paths have been copied and the pipeline has stopped.
func (c *Client) Stop(wait bool) (*StopResponse, error) {
	resp := new(StopResponse)
	if err := c.rpc.Call(serviceName+".Stop", StopRequest{Wait: wait}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
