// Package main runs biometricd, the verification and attendance daemon.
//
// It wires the verification engine, the attendance log, and the device
// registry onto one HTTP listener, with background jobs that keep recently
// seen terminals uploading and log liveness transitions. Configuration
// comes from an optional TOML file plus BIOMETRICD_* environment overrides.
//
// Run:
//
//	biometricd -config /etc/biometricd/config.toml
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	biometric "github.com/Guidona-Softpedia-Private-Limited/geo-attendance"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/attend"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/device"
	"github.com/Guidona-Softpedia-Private-Limited/geo-attendance/httpapi"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("biometricd: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("biometricd: redis ping %s: %v", cfg.Redis.Addr, err)
	}

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		log.Fatalf("biometricd: %v", err)
	}

	builder := biometric.New().WithConfig(engineCfg).WithRedis(rdb)

	if cfg.Audit.Enabled {
		sink, closeSink, err := newAuditSink(&cfg.Audit)
		if err != nil {
			log.Fatalf("biometricd: %v", err)
		}
		// Closed after engine.Close has drained the dispatcher.
		defer closeSink()
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("biometricd: engine build: %v", err)
	}
	defer engine.Close()

	records := attend.NewStore(rdb, cfg.Redis.Prefix, cfg.Attendance.MaxRecords)
	devices := device.NewRegistry(rdb, cfg.Redis.Prefix, seconds(cfg.Device.DisconnectSeconds))
	commands := device.NewCommandQueue(cfg.Device.CommandQueueLimit)

	srv := httpapi.NewServer(httpapi.Deps{
		Engine:   engine,
		Records:  records,
		Devices:  devices,
		Commands: commands,
	}, engineCfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("biometricd: listening on %s", cfg.Listen)
		return srv.Listen(cfg.Listen)
	})

	if cfg.Jobs.AutoQueueSeconds > 0 {
		g.Go(func() error {
			return runAutoQueue(gctx, devices, commands,
				seconds(cfg.Jobs.AutoQueueSeconds),
				seconds(cfg.Jobs.AutoQueueWindowSeconds))
		})
	}

	if cfg.Jobs.MonitorSeconds > 0 {
		g.Go(func() error {
			return runDeviceMonitor(gctx, devices, engine.Metrics(), seconds(cfg.Jobs.MonitorSeconds))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Print("biometricd: shutting down")
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("biometricd: %v", err)
	}
	if n := engine.AuditDropped(); n > 0 {
		log.Printf("biometricd: %d audit records dropped under pressure", n)
	}
	log.Print("biometricd: stopped")
}

// runAutoQueue periodically seeds upload commands for terminals that pushed
// within window and have nothing pending, so punches keep flowing even when
// no operator asks for them.
func runAutoQueue(ctx context.Context, devices *device.Registry, commands *device.CommandQueue, interval, window time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := device.AutoQueue(ctx, devices, commands, window)
			if err != nil {
				log.Printf("biometricd: auto-queue: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("biometricd: queued uploads for %d devices", n)
			}
		}
	}
}

// runDeviceMonitor logs liveness transitions so a silent terminal shows up
// in the daemon log before anyone checks the dashboard.
func runDeviceMonitor(ctx context.Context, devices *device.Registry, metrics *biometric.Metrics, interval time.Duration) error {
	monitor := device.NewMonitor(devices)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dropped, returned, err := monitor.Sweep(ctx)
			if err != nil {
				log.Printf("biometricd: device monitor: %v", err)
				continue
			}
			for _, sn := range dropped {
				metrics.Inc(biometric.MetricDeviceFlap)
				log.Printf("biometricd: device %s disconnected", sn)
			}
			for _, sn := range returned {
				metrics.Inc(biometric.MetricDeviceFlap)
				log.Printf("biometricd: device %s reconnected", sn)
			}
		}
	}
}

// newAuditSink opens the rotating JSONL verification log. The returned
// closer flushes the current segment.
func newAuditSink(cfg *auditSection) (biometric.AuditSink, func() error, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, err
	}

	writer, err := rotatelogs.New(
		filepath.Join(cfg.Dir, "verifications.%Y%m%d%H.jsonl"),
		rotatelogs.WithLinkName(filepath.Join(cfg.Dir, "verifications.jsonl")),
		rotatelogs.WithRotationTime(time.Duration(cfg.RotateHours)*time.Hour),
		rotatelogs.WithMaxAge(time.Duration(cfg.MaxAgeDays)*24*time.Hour),
	)
	if err != nil {
		return nil, nil, err
	}

	return biometric.NewJSONWriterSink(writer), writer.Close, nil
}
