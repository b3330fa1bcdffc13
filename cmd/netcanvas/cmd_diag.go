package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/diagnostics"
	"github.com/HerbHall/netcanvas/internal/ui"
	"github.com/HerbHall/netcanvas/pkg/models"
)

func parseProtocol(s string) (models.Protocol, error) {
	switch p := models.Protocol(strings.ToLower(s)); p {
	case models.ProtocolTCP, models.ProtocolUDP, models.ProtocolICMP:
		return p, nil
	}
	return "", fmt.Errorf("unknown protocol %q (tcp, udp or icmp)", s)
}

var errNotDelivered = errors.New("packet not delivered")

// runError shows the session's message and keeps the cause for errors.Is.
type runError struct {
	msg string
	err error
}

func (e *runError) Error() string { return e.msg }
func (e *runError) Unwrap() error { return e.err }

// finish reports a failed run with the message the session settled on.
func finish(snap diagnostics.Snapshot) error {
	if snap.Phase != diagnostics.PhaseFailed {
		return nil
	}
	return &runError{msg: snap.Message, err: snap.Err}
}

func (c *cli) traceCmd() *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "trace <source> <destination>",
		Short: "Trace a packet between two devices of the active topology",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			proto, err := parseProtocol(protocol)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.session(ctx)
			if err != nil {
				return err
			}
			sess := a.Diagnostics()
			defer sess.Dispose()

			sess.SetSource(args[0])
			sess.SelectDestinationDevice(args[1])
			sess.SetProtocol(proto)
			if err := sess.Submit(ctx); err != nil {
				return finishOr(sess.Snapshot(), err)
			}
			snap, err := sess.Wait(ctx)
			if err != nil {
				return err
			}
			if err := finish(snap); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ui.Banner(out, fmt.Sprintf("trace %s → %s (%s)", args[0], args[1], proto))
			ui.Trace(out, snap.Trace)
			if !snap.Trace.Success {
				return errNotDelivered
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&protocol, "protocol", "p", string(models.ProtocolTCP), "packet protocol: tcp, udp or icmp")
	return cmd
}

func (c *cli) pingCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "ping <source> <address|device>",
		Short: "Ping an address, or a device's address, from a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.session(ctx)
			if err != nil {
				return err
			}
			sess := a.Diagnostics()
			defer sess.Dispose()

			sess.SelectVariant(diagnostics.VariantPing)
			sess.SetSource(args[0])
			if _, ok := a.Topology.Device(args[1]); ok {
				sess.SelectDestinationDevice(args[1])
			} else {
				sess.SetDestinationIP(args[1])
			}
			sess.SetCount(count)
			if err := sess.Submit(ctx); err != nil {
				return finishOr(sess.Snapshot(), err)
			}
			snap := sess.Snapshot()
			if err := finish(snap); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ui.Banner(out, fmt.Sprintf("ping %s from %s", snap.Ping.DestinationIP, args[0]))
			ui.Ping(out, snap.Ping)
			if snap.Ping.PacketsReceived == 0 {
				return errNotDelivered
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", diagnostics.DefaultPingCount, "echo requests to send (1-10)")
	return cmd
}

// finishOr prefers the session's failure message over a raw submit error.
func finishOr(snap diagnostics.Snapshot, err error) error {
	if failed := finish(snap); failed != nil {
		return failed
	}
	if errors.Is(err, diagnostics.ErrCannotSubmit) {
		return fmt.Errorf("source and destination are required")
	}
	return err
}
