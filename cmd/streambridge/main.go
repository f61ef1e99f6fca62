// Command streambridge bridges a serial port to TCP clients: serial bytes
// are broadcast to every connected client, client bytes are merged and
// written back to the serial port. Completed serial lines are reported to
// the log and, when configured, to Redis and a websocket feed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/streambridge/asynctcp"
	"github.com/cyberinferno/streambridge/bridge"
	"github.com/cyberinferno/streambridge/config"
	"github.com/cyberinferno/streambridge/logger"
	"github.com/cyberinferno/streambridge/serial"
	"github.com/cyberinferno/streambridge/sink"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "streambridge: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log logger.Logger
	if cfg.LogFile != "" {
		log, err = logger.NewFileLogger("streambridge", cfg.LogFile, level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "streambridge: %v\n", err)
			os.Exit(1)
		}
	} else {
		log = logger.New("streambridge", level)
	}
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("bridge exited", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := serial.Open(cfg.SerialDevice, cfg.BaudRate, cfg.BufSize)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Info("serial device opened",
		logger.Field{Key: "device", Value: cfg.SerialDevice},
		logger.Field{Key: "baud", Value: cfg.BaudRate})

	history := sink.NewHistorySink(cfg.HistoryTTL)
	sinks := sink.MultiSink{sink.NewLogSink(log), history}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		sinks = append(sinks, sink.NewRedisSink(client, cfg.RedisChannel, log))
		log.Info("redis line sink enabled",
			logger.Field{Key: "addr", Value: cfg.RedisAddr},
			logger.Field{Key: "channel", Value: cfg.RedisChannel})
	}

	var feed *sink.FeedSink
	if cfg.HTTPAddr != "" {
		feed = sink.NewFeedSink(log)
		sinks = append(sinks, feed)
	}

	br := bridge.New(port, sinks, log,
		bridge.WithBufSize(cfg.BufSize),
		bridge.WithLineSize(cfg.LineSize))

	srv := &asynctcp.Server{
		Logger:      log,
		Addr:        cfg.ListenAddr(),
		IdleTimeout: cfg.IdleTimeout,
		ReadBufSize: cfg.BufSize,
	}
	srv.OnClient(func(c *asynctcp.Conn) { br.Register(c) })

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	br.DumpConfig(srv.Port())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				br.Tick()
			}
		}
	})

	if feed != nil {
		mux := http.NewServeMux()
		mux.HandleFunc("/feed", feed.ServeWS)
		mux.HandleFunc("/recent", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(history.Recent())
		})

		httpSrv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.Info("http feed listening", logger.Field{Key: "addr", Value: cfg.HTTPAddr})
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutCtx)
		})
	}

	err = g.Wait()
	br.Shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
