package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	adhoc "BlurServer/Adhoc"
	"BlurServer/api"
	"BlurServer/backend"
	"BlurServer/config"
	"BlurServer/delivery"
	"BlurServer/engine"
	proto "BlurServer/gRPC"
	"BlurServer/logger"
	"BlurServer/monitor"
	"BlurServer/ndarray"
	"BlurServer/sink"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

func GetOutboundIP() (string, error) {
	// UDP dial only resolves the route; nothing is sent.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP.String(), nil
}

func run(cfg config.Config) error {
	log := logger.Log()
	log.Info("Starting blur server",
		zap.String(logger.FieldPort, cfg.PortName),
		zap.Int("cpu_cores", runtime.NumCPU()),
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("rpc_port", cfg.RPCPort),
		zap.Int("monitor_port", cfg.MonitorPort))

	logger.S().Infof("Queue size %d, blocking callbacks %v, buffers %d, memory %d bytes",
		cfg.QueueSize, cfg.BlockingCallbacks, cfg.MaxBuffers, cfg.MaxMemory)

	smoother, err := backend.LoadBackend(cfg.Backend)
	if err != nil {
		return err
	}
	metrics := monitor.NewMetrics()
	e := engine.New(smoother,
		engine.WithPortName(cfg.PortName),
		engine.WithPool(ndarray.NewPool(cfg.MaxBuffers, cfg.MaxMemory)),
		engine.WithParams(engine.NewParams(cfg.Params())),
		engine.WithRecorder(metrics))
	defer e.Destroy()

	d := delivery.NewDriver(e, delivery.Options{
		QueueSize:         cfg.QueueSize,
		BlockingCallbacks: cfg.BlockingCallbacks,
		Priority:          cfg.Priority,
		StackSize:         cfg.StackSize,
	}, metrics)
	hub := api.NewHub()
	d.Subscribe(hub)
	if cfg.SinkURL != "" {
		d.Subscribe(sink.New(cfg.SinkURL, cfg.PortName))
		log.Info("Forwarding frames", zap.String("url", cfg.SinkURL))
	}
	d.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rpc := proto.NewServer(e, d, metrics)
	grpcServer, err := proto.StartGRPCServer(cfg.RPCPort, rpc)
	if err != nil {
		d.Close()
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := monitor.StartMon(ctx, cfg.MonitorPort, metrics); err != nil {
			log.Error("monitor stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		router := api.NewRouter(&api.Handler{Engine: e, Driver: d, Hub: hub, Requests: metrics})
		if err := api.Serve(ctx, cfg.HTTPPort, router); err != nil {
			log.Error("HTTP server stopped", zap.Error(err))
			cancel()
		}
	}()

	if cfg.UseRegServer {
		ip, err := GetOutboundIP()
		if err != nil {
			log.Warn("Failed to get outbound IP", zap.Error(errors.Wrap(err, "outbound ip")))
			ip = "127.0.0.1"
		}
		adhoc.RegServerCfg = adhoc.RegServerConfig{}
		adhoc.RegServerCfg.SetAddress(cfg.RegServerHost, cfg.RegServerPort)
		wg.Add(1)
		go adhoc.SendAliveMessage(ctx, &wg, adhoc.RegisterRequest{
			Id:            e.ID(),
			IP:            ip,
			Port:          cfg.RPCPort,
			InstanceClass: adhoc.InstanceClassFor(cfg.Backend),
			PluginType:    engine.PluginType,
			PortName:      cfg.PortName,
		})
	} else {
		log.Info("UseRegServer is set to false, skipping registration")
	}

	select {
	case <-ctx.Done():
		log.Info("Signal received, shutting down")
	case <-rpc.CloseChannel:
		log.Info("Shutdown requested, shutting down")
	}
	cancel()
	grpcServer.GracefulStop()
	hub.Close()
	wg.Wait()
	d.Close()
	log.Info("Safely exited")
	return nil
}
