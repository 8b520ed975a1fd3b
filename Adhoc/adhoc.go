package Adhoc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"BlurServer/logger"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	OpenCVInstance = 0x2001
	NativeInstance = 0x2002
	TimeOutSeconds = 5
)

type RegisterRequest struct {
	Id            string `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	InstanceClass int    `json:"instanceClass"`
	PluginType    string `json:"pluginType"`
	PortName      string `json:"portName"`
	TimeStamp     int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

func (reg *RegServerConfig) URL() string {
	addr := reg.Addr
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return fmt.Sprintf("%s:%d/api/register", addr, reg.Port)
}

var RegServerCfg RegServerConfig

// Interval between heartbeats.
var Interval = TimeOutSeconds * time.Second

// InstanceClassFor maps a backend name to the class reported to the registry.
func InstanceClassFor(backend string) int {
	if strings.EqualFold(backend, "native") {
		return NativeInstance
	}
	return OpenCVInstance
}

// Register sends one registration and decodes the reply.
func Register(ctx context.Context, client *resty.Client, url string, req RegisterRequest) (RegisterResponse, error) {
	var respBody RegisterResponse
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&respBody).
		Post(url)
	if err != nil {
		return respBody, errors.Wrap(err, "register request")
	}
	if resp.IsError() {
		return respBody, errors.Newf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}
	return respBody, nil
}

// SendAliveMessage registers the plugin with RegServerCfg immediately and
// then every Interval until ctx is done.
func SendAliveMessage(ctx context.Context, wg *sync.WaitGroup, req RegisterRequest) {
	defer wg.Done()
	url := RegServerCfg.URL()
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	client := resty.New().SetTimeout(TimeOutSeconds * time.Second)
	if req.Id == "" {
		req.Id = uuid.NewString()
	}
	safeDoRequest := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log().Error(fmt.Sprintf("SendAliveMessage panic recovered: %v", r))
			}
		}()
		req.TimeStamp = time.Now().Unix()
		if _, err := Register(ctx, client, url, req); err != nil && ctx.Err() == nil {
			logger.Log().Error("heartbeat failed", zap.String("url", url), zap.Error(err))
		}
	}
	safeDoRequest()
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			safeDoRequest()
		}
	}
}
