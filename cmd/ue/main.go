package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"uesim/internal/command"
	"uesim/internal/config"
	"uesim/internal/io"
	"uesim/internal/logger"
	"uesim/internal/metrics"
	"uesim/internal/ue"
)

func main() {
	path := flag.String("config", "", "path to the yaml configuration")
	gnbID := flag.Uint("gnb", 1, "gNB id announced in the NG setup request")
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
	log.Debugf("configuration:\n%s", cfg.Dump())

	opts, err := ue.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("invalid ue configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := net.Dial("tcp", cfg.AMF.Address)
	if err != nil {
		log.Fatalf("cannot reach amf at %s: %v", cfg.AMF.Address, err)
	}
	log.Infof("Connected to %s", c.RemoteAddr().String())

	link := io.NewLink(c, log.Named("link"))
	u := ue.New(opts, link, log.Named("ue"))
	if err := u.SetupAssociation(uint32(*gnbID), "uesim-gnb"); err != nil {
		log.Fatalf("cannot send NG setup request: %v", err)
	}

	lis, err := net.Listen("tcp", cfg.Control.Address)
	if err != nil {
		log.Fatalf("grpc server failed to listen: %v", err)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(command.AuthInterceptor(cfg.Control.Token)))
	command.RegisterControlServer(grpcServer, command.NewServer(u, log.Named("control")))
	reflection.Register(grpcServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := link.Run(gctx, u); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return u.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Address, log.Named("metrics")) })
	g.Go(func() error {
		go func() {
			<-gctx.Done()
			grpcServer.GracefulStop()
		}()
		return grpcServer.Serve(lis)
	})

	err = g.Wait()
	if errors.Is(err, ue.ErrNotImplemented) {
		log.Fatalf("state machine stopped: %v", err)
	}
	if err != nil {
		log.Fatalf("ue simulator failed: %v", err)
	}
	log.Info("ue simulator stopped")
}
