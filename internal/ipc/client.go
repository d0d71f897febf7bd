package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const serviceName = "Merchbatch"

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stage parses the item list at path on the daemon host.
func (c *Client) Stage(path string) (*StageResponse, error) {
	return call[StageRequest, StageResponse](c, "Stage", StageRequest{Path: path})
}

// Start launches a run over the staged list.
func (c *Client) Start(req StartRequest) (*StartResponse, error) {
	return call[StartRequest, StartResponse](c, "Start", req)
}

// Pause requests a pause at the next checkpoint.
func (c *Client) Pause() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Pause", ControlRequest{})
}

// Resume clears a pause request.
func (c *Client) Resume() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Resume", ControlRequest{})
}

// Stop requests the active run to halt.
func (c *Client) Stop() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Stop", ControlRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// SubmitImageMapping records a replacement for an original resource path.
func (c *Client) SubmitImageMapping(original, uploaded string) (*ImageMappingResponse, error) {
	req := ImageMappingRequest{OriginalPath: original, UploadedPath: uploaded}
	return call[ImageMappingRequest, ImageMappingResponse](c, "SubmitImageMapping", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationRequest, TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// LogTail fetches daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailRequest, LogTailResponse](c, "LogTail", req)
}
