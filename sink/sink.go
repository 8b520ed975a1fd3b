// Package sink forwards emitted frames to an HTTP endpoint.
package sink

import (
	"time"

	"BlurServer/ndarray"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
)

const TimeOutSeconds = 5

// HTTPSink POSTs every published frame as an ndarray.Message.
type HTTPSink struct {
	client   *resty.Client
	url      string
	portName string
}

func New(url, portName string) *HTTPSink {
	return &HTTPSink{
		client:   resty.New().SetTimeout(TimeOutSeconds * time.Second),
		url:      url,
		portName: portName,
	}
}

func (s *HTTPSink) Publish(f *ndarray.Frame) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Port-Name", s.portName).
		SetBody(ndarray.Encode(f)).
		Post(s.url)
	if err != nil {
		return errors.Wrapf(err, "sink %s", s.url)
	}
	if resp.IsError() {
		return errors.Newf("sink %s returned %s: %s", s.url, resp.Status(), resp.String())
	}
	return nil
}
