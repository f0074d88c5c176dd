package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"uesim/internal/config"
	"uesim/internal/core"
	"uesim/internal/flow"
	"uesim/internal/logger"
	"uesim/internal/metrics"
)

func main() {
	path := flag.String("config", "", "path to the yaml configuration")
	eap := flag.Bool("eap", true, "challenge with EAP-AKA' instead of 5G AKA")
	ics := flag.Bool("ics", false, "send the registration accept in an initial context setup request")
	imeisv := flag.Bool("imeisv", false, "request the IMEISV in the security mode command")
	metricsAddr := flag.String("metrics", ":9091", "metrics listen address, empty to disable")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			zap.Must(zap.NewDevelopment()).Sugar().Fatalf("cannot load config: %v", err)
		}
	}

	l, err := logger.New(cfg.Logger.Level)
	if err != nil {
		zap.Must(zap.NewDevelopment()).Sugar().Fatalf("cannot build logger: %v", err)
	}
	defer l.Sync()
	log := l.Sugar()

	sub, err := core.SubscriberFromConfig(cfg)
	if err != nil {
		log.Fatalf("invalid subscriber: %v", err)
	}
	opts := core.OptionsFromConfig(cfg)
	opts.Use5GAKA = !*eap
	opts.InitialContextSetup = *ics
	opts.RequestIMEISV = *imeisv
	amf := core.New(opts, []*flow.Subscriber{sub}, log.Named("amf"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return amf.ListenAndServe(gctx, cfg.AMF.Address) })
	if *metricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, *metricsAddr, log.Named("metrics")) })
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("amf failed: %v", err)
	}
	log.Info("amf stopped")
}
