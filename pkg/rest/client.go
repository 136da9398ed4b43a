package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client is a thin resty wrapper shared by the data-api and companion
// endpoint clients.
type Client struct {
	client *resty.Client
}

func NewClient(host string) *Client {
	host = strings.TrimSuffix(host, "/")

	// resty picks up HTTP_PROXY/HTTPS_PROXY from the environment on its own.
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return d, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{client: client}
}

// RequestOptions carries per-request headers, query params and body.
type RequestOptions struct {
	Headers map[string]string
	Data    any
	Params  map[string]string
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "*/*")
	r.SetHeader("User-Agent", "gotrader/1.0")
	return r
}

// DoRequest executes one request and unmarshals a 2xx body into out.
func (c *Client) DoRequest(ctx context.Context, method, endpoint string, opt *RequestOptions, out any) (*resty.Response, error) {
	r := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			r.SetHeader(k, v)
		}
		if opt.Params != nil {
			r.SetQueryParams(opt.Params)
		}
		if opt.Data != nil {
			r.SetHeader("Content-Type", "application/json")
			r.SetBody(opt.Data)
		}
	}
	if out != nil {
		r.SetResult(out)
	}

	switch strings.ToUpper(method) {
	case http.MethodGet:
		return r.Get(endpoint)
	case http.MethodPost:
		return r.Post(endpoint)
	case http.MethodDelete:
		return r.Delete(endpoint)
	case http.MethodPut:
		return r.Put(endpoint)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
}

// CheckResponse turns a non-2xx response into an error carrying the
// decoded body.
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	b := resp.Body()
	_ = json.Unmarshal(b, &body)
	if body == nil {
		body = string(b)
	}
	return errors.Errorf("http %d: %v", resp.StatusCode(), body)
}
