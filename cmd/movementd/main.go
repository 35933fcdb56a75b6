// Command movementd classifies the device's movement from a serial IMU and
// serves the current state over HTTP, Redis and MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/motion.report/internal/api"
	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/publish"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/synth"
	"github.com/banshee-data/motion.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to movement config JSON (defaults built in)")
	listen      = flag.String("listen", ":8080", "Listen address")
	port        = flag.String("port", "/dev/ttyUSB0", "IMU serial port (ignored in dev mode)")
	portOptions = flag.String("port-options", "115200,8,N,1", "Serial options as baud,databits,parity,stopbits")
	disableIMU  = flag.Bool("disable-imu", false, "Run without an IMU; movement is reported as unsupported")
	devMode     = flag.Bool("dev", false, "Use a synthetic IMU instead of the serial port")
	devPattern  = flag.String("dev-pattern", "walking", "Synthetic movement in dev mode: stationary, walking or vehicle")
	dbPath      = flag.String("db", "motion.db", "sqlite database for state history (empty disables)")
	deviceID    = flag.String("device-id", "", "Device identifier (overrides config device_id)")

	redisAddr     = flag.String("redis-addr", "", "Redis address for state publishing (empty disables)")
	redisPassword = flag.String("redis-password", "", "Redis password")
	redisDB       = flag.Int("redis-db", 0, "Redis database number")

	mqttBroker   = flag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty disables)")
	mqttClientID = flag.String("mqtt-client-id", "movementd", "MQTT client ID")
	mqttUsername = flag.String("mqtt-username", "", "MQTT username")
	mqttPassword = flag.String("mqtt-password", "", "MQTT password")
	mqttQoS      = flag.Int("mqtt-qos", 1, "MQTT QoS for state messages (0-2)")

	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat   = flag.String("log-format", "console", "Log format: json or console")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// faultQueue bounds faults waiting to be written to the database.
const faultQueue = 64

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	zl, err := monitoring.NewZapLogger(*logLevel, *logFormat, "movementd")
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zl.Sync()
	monitoring.SetLogger(monitoring.ZapLogf(zl))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	device := cfg.GetDeviceID()
	if *deviceID != "" {
		device = *deviceID
	}

	imu, err := openIMU()
	if err != nil {
		log.Fatalf("failed to open IMU: %v", err)
	}
	defer imu.Close()

	if err := imu.Initialize(); err != nil {
		log.Fatalf("failed to initialize IMU: %v", err)
	}
	monitoring.Logf("initialized IMU (dev=%t disabled=%t)", *devMode, *disableIMU)

	var store *db.DB
	if *dbPath != "" {
		store, err = db.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()
	}

	faults := make(chan motion.FaultEvent, faultQueue)
	source := serialmux.NewAccelSource(imu, motion.DefaultSourceCapacity)
	engine, err := motion.NewEngine(cfg.EngineConfig(), source,
		motion.WithFaultHook(func(ev motion.FaultEvent) {
			select {
			case faults <- ev:
			default:
			}
		}),
	)
	if err != nil {
		log.Fatalf("failed to create movement engine: %v", err)
	}
	monitoring.Logf("movement engine session %s for device %s", engine.SessionID(), device)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder *db.StateRecorder
	var sinks []publish.Sink
	if store != nil {
		recorder = store.Recorder(device, engine.SessionID())
		sinks = append(sinks, recorder)
	}
	if *redisAddr != "" {
		client, err := publish.NewRedisClient(ctx, *redisAddr, *redisPassword, *redisDB)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer client.Close()
		sinks = append(sinks, publish.NewRedisSink(client, device, publish.RedisOptions{}))
	}
	if *mqttBroker != "" {
		if *mqttQoS < 0 || *mqttQoS > 2 {
			log.Fatalf("invalid mqtt-qos %d: must be 0, 1 or 2", *mqttQoS)
		}
		client, err := publish.NewMQTTClient(*mqttBroker, *mqttClientID, *mqttUsername, *mqttPassword)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer client.Disconnect(250)
		sinks = append(sinks, publish.NewMQTTSink(client, device, byte(*mqttQoS)))
	}
	fanout := publish.NewFanout(sinks...)
	// Subscribe before the engine starts so the initial state reaches sinks.
	subID, states := engine.Subscribe()
	defer engine.Unsubscribe(subID)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := imu.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("failed to monitor serial port: %v", err)
		}
		monitoring.Logf("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("accel source stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fanout.Consume(ctx, states); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("state fanout stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev := <-faults:
				if recorder == nil {
					continue
				}
				if err := recorder.RecordFault(context.Background(), ev); err != nil {
					monitoring.Logf("failed to record fault: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := engine.Run(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
		case errors.Is(err, motion.ErrNotSupported):
			monitoring.Logf("movement detection unavailable: no IMU")
		case errors.Is(err, motion.ErrEngineDisabled):
			monitoring.Logf("movement detection disabled after repeated faults; restart to re-enable")
		default:
			monitoring.Logf("movement engine stopped: %v", err)
		}
		monitoring.Logf("engine routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		var history api.History
		if store != nil {
			history = store
		}
		mux := api.NewServer(engine, history, fanout, device).ServeMux()
		imu.AttachAdminRoutes(mux)
		if store != nil {
			store.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	<-ctx.Done()
	engine.Shutdown()
	wg.Wait()
	monitoring.Logf("Graceful shutdown complete")
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.MovementConfig, error) {
	if path == "" {
		return config.DefaultMovementConfig(), nil
	}
	cfg, err := config.LoadMovementConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openIMU picks the IMU mux from the flags: disabled, synthetic or serial.
func openIMU() (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableIMU:
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		mode, err := synth.ParseMode(*devPattern)
		if err != nil {
			return nil, err
		}
		return serialmux.NewSyntheticSerialMux(mode, serialmux.DefaultOutputRateHz, time.Now().UnixNano()), nil
	}
	opts, err := serialmux.ParsePortOptions(*portOptions)
	if err != nil {
		return nil, err
	}
	return serialmux.NewRealSerialMux(*port, opts)
}
