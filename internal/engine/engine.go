// Package engine owns the single root that constructs every component and
// wires them together: it is the only place that imports every other
// internal package, keeping the rest of the codebase acyclic. Shutdown
// unwinds in reverse dependency order: HTTP -> Broker -> Monitoring ->
// Recorder -> Pipelines -> Router -> Device Link.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/linkband-io/linkband-server/internal/bus"
	"github.com/linkband-io/linkband-server/internal/device"
	"github.com/linkband-io/linkband-server/internal/devicefactory"
	"github.com/linkband-io/linkband-server/internal/httpapi"
	"github.com/linkband-io/linkband-server/internal/monitoring"
	"github.com/linkband-io/linkband-server/internal/pipeline"
	"github.com/linkband-io/linkband-server/internal/recorder"
	"github.com/linkband-io/linkband-server/internal/router"
	"github.com/linkband-io/linkband-server/internal/wsbroker"
	"github.com/linkband-io/linkband-server/pkg/config"
)

var enabledSensors = []device.SensorKind{
	device.SensorEEG, device.SensorPPG, device.SensorACC, device.SensorBattery,
}

// Engine is the assembled server: every component plus the goroutines
// coordinating them.
type Engine struct {
	cfg    *config.Config
	logger *logrus.Logger

	bus      *bus.Bus
	router   *router.Router
	catalog  *device.Catalog
	link     *device.Link
	recorder *recorder.Recorder
	broker   *wsbroker.Broker
	monitor  *monitoring.Monitor
	httpSrv  *httpapi.Server

	eegPipeline *pipeline.EEGPipeline
	ppgPipeline *pipeline.PPGPipeline
	accPipeline *pipeline.ACCPipeline

	eegQueue *router.PipelineQueue
	ppgQueue *router.PipelineQueue
	accQueue *router.PipelineQueue

	cancel context.CancelFunc
}

// New constructs every component wired together, but starts nothing yet.
func New(cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}

	b := bus.New(logger)
	r := router.NewRouter(b, logger)

	catalog, err := device.OpenCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open device catalog: %w", err)
	}

	scanner, err := devicefactory.DeviceFactory()
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("create ble scanner: %w", err)
	}
	link := device.NewLink(scanner, logger)

	rec, err := recorder.New(cfg.ExportRoot, cfg.SessionDB, logger)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("open recorder: %w", err)
	}

	eegQueue := router.NewPipelineQueue(device.SensorEEG)
	ppgQueue := router.NewPipelineQueue(device.SensorPPG)
	accQueue := router.NewPipelineQueue(device.SensorACC)
	r.RegisterPipeline(device.SensorEEG, eegQueue)
	r.RegisterPipeline(device.SensorPPG, ppgQueue)
	r.RegisterPipeline(device.SensorACC, accQueue)
	r.ArmRecorder(rec)

	eegPipeline := pipeline.NewEEGPipeline(b, logger)
	ppgPipeline := pipeline.NewPPGPipeline(b, logger)
	accPipeline := pipeline.NewACCPipeline(b, logger)

	broker := wsbroker.New(b, logger)

	mon := monitoring.New(r, b, b, enabledSensors, logger,
		monitoring.WithClientCounter(broker),
		monitoring.WithRecorder(rec),
	)

	devAPI := newDeviceAPI(link, catalog)
	link.OnSample(func(s device.Sample) {
		devAPI.onSample(s)
		r.Route(s)
	})
	link.OnStateChange(func(sc device.StateChange) {
		for _, ev := range linkLifecycleEvents(sc) {
			b.Publish(ev.Topic, ev.Payload)
		}
	})

	streamAPI := newStreamAPI(link, r, enabledSensors)
	recAPI := newRecordingAPI(rec, b)
	metAPI := newMetricsAPI(mon)

	httpSrv := httpapi.New(serverVersion, logger,
		httpapi.WithDevice(devAPI),
		httpapi.WithStream(streamAPI),
		httpapi.WithRecording(recAPI),
		httpapi.WithMetrics(metAPI),
		httpapi.WithWebSocketHandler(broker),
		httpapi.WithClientCounter(broker.ClientCount),
	)

	broker.SetCommandHandler(newCommandHandler(devAPI, streamAPI, recAPI))

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		bus:         b,
		router:      r,
		catalog:     catalog,
		link:        link,
		recorder:    rec,
		broker:      broker,
		monitor:     mon,
		httpSrv:     httpSrv,
		eegPipeline: eegPipeline,
		ppgPipeline: ppgPipeline,
		accPipeline: accPipeline,
		eegQueue:    eegQueue,
		ppgQueue:    ppgQueue,
		accQueue:    accQueue,
	}

	b.OnSlowClient(func(clientID string) {
		b.Publish("event.error.slow_client", map[string]any{"client_id": clientID})
	})

	return e, nil
}

const serverVersion = "1.0.0"

// Run starts every task and blocks until ctx is cancelled, then shuts down
// in reverse dependency order.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	go e.eegPipeline.Runner().Run(ctx, e.eegQueue)
	go e.ppgPipeline.Runner().Run(ctx, e.ppgQueue)
	go e.accPipeline.Runner().Run(ctx, e.accQueue)
	go e.monitor.Run(ctx)
	go e.recordProcessedFrames(ctx)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", e.cfg.HTTPPort)
		if err := e.httpSrv.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		e.logger.WithError(err).Error("engine: http server failed")
	}

	return e.shutdown()
}

// recordProcessedFrames subscribes to processed.* on the bus and forwards
// every frame to the recorder, which no-ops when idle.
func (e *Engine) recordProcessedFrames(ctx context.Context) {
	sub := e.bus.Subscribe("recorder.processed", []string{"processed.*"})
	defer e.bus.Unsubscribe("recorder.processed")

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			kind := device.SensorKind(env.Topic[len("processed."):])
			if err := e.recorder.WriteProcessed(kind, env.Payload); err != nil {
				e.logger.WithError(err).Warn("engine: failed recording processed frame")
			}
		}
	}
}

func (e *Engine) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.httpSrv.Shutdown(shutdownCtx); err != nil {
		e.logger.WithError(err).Warn("engine: http shutdown error")
	}

	if e.cancel != nil {
		e.cancel()
	}

	if _, err := e.recorder.Stop(); err != nil && err != recorder.ErrNotRecording {
		e.logger.WithError(err).Warn("engine: recorder stop error")
	}
	if err := e.recorder.Close(); err != nil {
		e.logger.WithError(err).Warn("engine: recorder close error")
	}

	_ = e.link.Disconnect()
	if err := e.catalog.Close(); err != nil {
		e.logger.WithError(err).Warn("engine: catalog close error")
	}

	e.logger.Info("engine: shutdown complete")
	return nil
}
