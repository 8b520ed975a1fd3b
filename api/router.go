// Package api is the HTTP surface: parameter access, stats, synchronous frame
// submission and the websocket output stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"BlurServer/delivery"
	"BlurServer/engine"
	"BlurServer/logger"
	"BlurServer/ndarray"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Engine   *engine.Engine
	Driver   *delivery.Driver
	Hub      *Hub
	Requests iface.RequestCounter
}

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.count)
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/params", h.getParams)
	r.PUT("/api/params", h.putParams)
	r.GET("/api/stats", h.stats)
	r.POST("/api/frames", h.processFrame)
	r.POST("/api/frames/queue", h.queueFrame)
	if h.Hub != nil {
		r.GET("/ws/frames", h.Hub.ServeWS)
	}
	return r
}

func (h *Handler) count(c *gin.Context) {
	if h.Requests != nil {
		h.Requests.Request("http")
	}
	c.Next()
}

func (h *Handler) getParams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"portName":   h.Engine.PortName(),
		"pluginType": h.Engine.PluginType(),
		"data":       h.Engine.Params().Get(),
	})
}

func (h *Handler) putParams(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.Engine.Params().Update(func(cur engine.ParamValues) (engine.ParamValues, error) {
		return engine.MergeParams(cur, fields)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": v})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": delivery.BuildReport(h.Engine, h.Driver)})
}

func decodeFrame(c *gin.Context) (*ndarray.Frame, bool) {
	var msg ndarray.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	f, err := ndarray.Decode(msg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if f.TimeStamp.IsZero() {
		f.TimeStamp = time.Now()
	}
	return f, true
}

// processFrame runs one cycle in the request and returns the output frame.
// Rejected cycles answer 422.
func (h *Handler) processFrame(c *gin.Context) {
	f, ok := decodeFrame(c)
	if !ok {
		return
	}
	defer func() { _ = f.Release() }()
	res := h.Driver.ProcessNow(f)
	if res.Status == iface.Rejected {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": res.Status.String(), "error": res.Err.Error()})
		return
	}
	defer func() { _ = res.Output.Release() }()
	body := gin.H{
		"status":     res.Status.String(),
		"params":     res.Params,
		"durationUs": res.Duration.Microseconds(),
		"data":       ndarray.Encode(res.Output),
	}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// queueFrame hands the frame to the delivery driver and returns at once.
func (h *Handler) queueFrame(c *gin.Context) {
	f, ok := decodeFrame(c)
	if !ok {
		return
	}
	err := h.Driver.Submit(f)
	_ = f.Release()
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"uniqueId": f.UniqueID})
	case errors.Is(err, delivery.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Serve runs the router on port until ctx is done.
func Serve(ctx context.Context, port int, r http.Handler) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("HTTP server listening", zap.Int(logger.FieldPort, port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
