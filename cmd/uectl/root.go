package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	"uesim/internal/command"
)

var errNotRecognized = errors.New("command not recognized by the endpoint")

// controller is the part of command.Client the CLI drives.
type controller interface {
	Execute(ctx context.Context, cmd command.Command) (bool, error)
	State(ctx context.Context) (*command.Snapshot, error)
}

type connectFunc func(addr, token string) (controller, func() error, error)

func dialControl(addr, token string) (controller, func() error, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create grpc client: %w", err)
	}
	return command.NewClient(cc, token), cc.Close, nil
}

type rootOptions struct {
	addr    string
	token   string
	timeout time.Duration
}

func newRootCmd(connect connectFunc, log *zap.SugaredLogger) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "uectl",
		Short:         "Drive a running UE simulator over its control service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:9930", "control service address")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "auth token of the control service")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	// with runs fn against a fresh connection bounded by the request timeout.
	with := func(cmd *cobra.Command, fn func(context.Context, controller) error) error {
		ctl, closeFn, err := connect(opts.addr, opts.token)
		if err != nil {
			return err
		}
		defer closeFn()
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
		defer cancel()
		return fn(ctx, ctl)
	}
	execute := func(cmd *cobra.Command, c command.Command) error {
		return with(cmd, func(ctx context.Context, ctl controller) error {
			ok, err := ctl.Execute(ctx, c)
			if err != nil {
				return fmt.Errorf("command %q failed: %w", c.Name(), err)
			}
			if !ok {
				return fmt.Errorf("%q: %w", c.Name(), errNotRecognized)
			}
			log.Infof("command %q accepted", c.Name())
			return nil
		})
	}

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Print the endpoint state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return with(cmd, func(ctx context.Context, ctl controller) error {
				snap, err := ctl.State(ctx)
				if err != nil {
					return fmt.Errorf("state query failed: %w", err)
				}
				out, err := yaml.Marshal(snap)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}

	var initialFollowOn, periodicFollowOn, switchOff bool
	initialCmd := &cobra.Command{
		Use:   "initial-registration",
		Short: "Start an initial registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, command.InitialRegistration{FollowOn: initialFollowOn})
		},
	}
	initialCmd.Flags().BoolVar(&initialFollowOn, "follow-on", false, "set the follow-on request bit")

	periodicCmd := &cobra.Command{
		Use:   "periodic-registration",
		Short: "Start a periodic registration update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, command.PeriodicRegistration{FollowOn: periodicFollowOn})
		},
	}
	periodicCmd.Flags().BoolVar(&periodicFollowOn, "follow-on", false, "set the follow-on request bit")

	deregCmd := &cobra.Command{
		Use:   "deregistration",
		Short: "Start a UE originating deregistration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, command.Deregistration{SwitchOff: switchOff})
		},
	}
	deregCmd.Flags().BoolVar(&switchOff, "switch-off", false, "deregister for switch off")

	sendCmd := &cobra.Command{
		Use:   "send NAME",
		Short: "Send a raw command name, for checking how the endpoint treats unknown commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, command.Unknown{Command: args[0]})
		},
	}

	root.AddCommand(stateCmd, initialCmd, periodicCmd, deregCmd, sendCmd)
	return root
}
