package serv

import (
	"errors"
	"fmt"

	"github.com/go-http-utils/headers"
	"github.com/go-resty/resty/v2"
)

const (
	errNotFound = "api not found"
)

// Client calls a running Vitals service
type Client struct {
	*resty.Client
}

type Resp struct {
	Healthy bool
	Msg     string
}

func NewClient(host string) *Client {
	c := resty.New().
		SetBaseURL(host).
		SetHeader(headers.Accept, "text/plain")

	c.OnAfterResponse(func(c *resty.Client, res *resty.Response) error {
		var e string
		switch {
		case res.StatusCode() == 404:
			e = errNotFound
		case res.IsError():
			e = string(res.Body())
		}
		if e != "" {
			return errors.New(e)
		}
		return nil
	})
	return &Client{c}
}

// Check calls the health route and reports whether the database behind
// the service is reachable. The route answers 200 either way, the body
// carries the verdict.
func (c *Client) Check() (*Resp, error) {
	errMsg := "health check failed: %w"

	res, err := c.R().Get(healthRoute)
	if err != nil {
		return nil, fmt.Errorf(errMsg, err)
	}

	body := string(res.Body())
	return &Resp{Healthy: body == string(healthyResponse), Msg: body}, nil
}
