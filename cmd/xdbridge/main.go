// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// xdbridge hosts the plugin bridge: it performs restserver.php requests
// for clients that cannot reach the API directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/restapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scott-cotton/cli"
)

const defaultAddr = "127.0.0.1:9400"

func main() {
	cli.MainContext(context.Background(), MainCommand())
}

type Config struct {
	Addr      string `cli:"name=addr desc='listen address (default 127.0.0.1:9400)'"`
	Transport string `cli:"name=transport aliases=t desc='link transport: zap or grpc'"`
	File      string `cli:"name=config aliases=c desc='toml or yaml config file'"`
	Metrics   string `cli:"name=metrics desc='address to serve prometheus metrics on'"`

	Main *cli.Command
}

func MainCommand() *cli.Command {
	cfg := &Config{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("xdbridge").
		WithSynopsis("xdbridge [opts]").
		WithDescription("xdbridge performs API requests on behalf of bridge clients.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return run(cfg, cc, args)
		})
	cfg.Main = cmd
	return cmd
}

func run(cfg *Config, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: unexpected arguments %v", cli.ErrUsage, args)
	}

	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}
	if !restapi.HasTransport(conf.Bridge.Transport) {
		return fmt.Errorf("%w: unknown transport %q, have %v", cli.ErrUsage, conf.Bridge.Transport, restapi.AvailableTransports())
	}

	log := restapi.NewLogger("xdbridge", conf.Log)
	restapi.RegisterMetrics()

	host := restapi.NewXdComm(&http.Client{Timeout: conf.HTTPTimeout}, log)
	srv, err := restapi.ListenBridge(conf.Bridge.Addr, host.Handle,
		restapi.WithServerTransport(conf.Bridge.Transport),
		restapi.WithServerLogger(log))
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Bridge.Addr, err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics != "" {
		ms := &http.Server{Addr: cfg.Metrics, Handler: promhttp.Handler()}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer ms.Close()
	}

	log.Info().
		Str("addr", srv.Addr()).
		Str("transport", conf.Bridge.Transport).
		Msg("bridge listening")
	fmt.Fprintf(cc.Out, "listening on %s\n", srv.Addr())
	return srv.Serve(ctx)
}

// loadConfig layers flags over the config file over defaults.
func loadConfig(cfg *Config) (restapi.Config, error) {
	conf := restapi.DefaultConfig()
	if cfg.File != "" {
		var err error
		if conf, err = restapi.LoadConfig(cfg.File); err != nil {
			return restapi.Config{}, err
		}
	}
	if cfg.Addr != "" {
		conf.Bridge.Addr = cfg.Addr
	}
	if conf.Bridge.Addr == "" {
		conf.Bridge.Addr = defaultAddr
	}
	if cfg.Transport != "" {
		conf.Bridge.Transport = cfg.Transport
	}
	if conf.Bridge.Transport == "" {
		conf.Bridge.Transport = restapi.DefaultTransport
	}
	if conf.HTTPTimeout <= 0 {
		conf.HTTPTimeout = restapi.DefaultHTTPTimeout
	}
	return conf, nil
}
