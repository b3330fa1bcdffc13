package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/canvas"
	"github.com/HerbHall/netcanvas/internal/properties"
	"github.com/HerbHall/netcanvas/internal/ui"
	"github.com/HerbHall/netcanvas/pkg/models"
)

func (c *cli) deviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "device",
		Aliases: []string{"dev"},
		Short:   "Edit devices and links of the active topology",
	}
	cmd.AddCommand(
		c.deviceAddCmd(),
		c.deviceRmCmd(),
		c.deviceMoveCmd(),
		c.deviceSetCmd(),
		c.deviceLinkCmd(),
		c.deviceUnlinkCmd(),
		c.deviceInterfacesCmd(),
	)
	return cmd
}

func (c *cli) deviceAddCmd() *cobra.Command {
	var x, y float64
	cmd := &cobra.Command{
		Use:   "add <host|switch|router>",
		Short: "Create a device at a canvas position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseDeviceKind(args[0])
			if err != nil {
				return err
			}
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			d, err := a.Canvas.Drop(cmd.Context(), kind, canvas.Point{X: x, Y: y})
			if err != nil {
				return err
			}
			ip := d.IPAddress
			if ip == "" {
				ip = "no address"
			}
			ui.Success(cmd.OutOrStdout(), "Created %s %s (%s)", kind, d.ID, ip)
			return nil
		},
	}
	cmd.Flags().Float64Var(&x, "x", 100, "horizontal canvas position")
	cmd.Flags().Float64Var(&y, "y", 100, "vertical canvas position")
	return cmd
}

func (c *cli) deviceRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <device>",
		Aliases: []string{"delete"},
		Short:   "Delete a device and its links",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Canvas.DeleteDeviceByID(cmd.Context(), args[0]); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Deleted %s", args[0])
			return nil
		},
	}
}

func (c *cli) deviceMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <device> <x> <y>",
		Short: "Move a device; the position is kept inside the canvas",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid x %q", args[1])
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid y %q", args[2])
			}
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Canvas.BeginDrag(args[0]); err != nil {
				return err
			}
			pos, err := a.Canvas.DragMove(canvas.Point{X: x, Y: y})
			if err != nil {
				return err
			}
			if err := a.Canvas.EndDrag(cmd.Context()); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Moved %s to %.0f,%.0f", args[0], pos.X, pos.Y)
			return nil
		},
	}
}

func (c *cli) deviceSetCmd() *cobra.Command {
	var name, ip string
	cmd := &cobra.Command{
		Use:   "set <device>",
		Short: "Change the display name or address of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && ip == "" {
				return fmt.Errorf("nothing to change: pass --name or --ip")
			}
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			ed, err := a.Canvas.Properties(args[0])
			if err != nil {
				return err
			}
			defer ed.Close()
			d, err := ed.Save(cmd.Context(), name, ip)
			if err != nil {
				return err
			}
			addr := d.IPAddress
			if addr == "" {
				addr = "-"
			}
			ui.Success(cmd.OutOrStdout(), "%s: %s, %s", d.ID, d.DisplayName, addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&ip, "ip", "", "new address; a bare address gets /24")
	return cmd
}

func (c *cli) deviceLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <device> <device>",
		Short: "Connect two devices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, ok := a.Topology.Device(id); !ok {
					return fmt.Errorf("unknown device %s", id)
				}
			}
			if args[0] == args[1] {
				return fmt.Errorf("cannot link %s to itself", args[0])
			}
			if err := a.Canvas.Click(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.Canvas.Click(cmd.Context(), args[1]); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Linked %s and %s", args[0], args[1])
			return nil
		},
	}
}

func (c *cli) deviceUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <device> <device>",
		Short: "Remove the link between two devices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			for _, conn := range a.Topology.Connections() {
				if conn.Connects(args[0], args[1]) {
					if err := a.Canvas.DeleteConnection(cmd.Context(), conn.ID); err != nil {
						return err
					}
					ui.Success(cmd.OutOrStdout(), "Unlinked %s and %s", args[0], args[1])
					return nil
				}
			}
			return fmt.Errorf("%s and %s are not linked", args[0], args[1])
		},
	}
}

func (c *cli) deviceInterfacesCmd() *cobra.Command {
	var name, ip string
	var mask int
	cmd := &cobra.Command{
		Use:   "interfaces <router>",
		Short: "List router interfaces, or add one with --add",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			ed, err := a.Canvas.Properties(args[0])
			if err != nil {
				return err
			}
			defer ed.Close()
			if err := ed.ActivateTab(cmd.Context(), properties.TabInterfaces); err != nil {
				return err
			}
			if name != "" || ip != "" {
				if err := ed.AddInterface(cmd.Context(), name, ip, mask); err != nil {
					if msg := ed.LastError(); msg != "" {
						return errors.New(msg)
					}
					return err
				}
				ui.Success(cmd.OutOrStdout(), "%s", ed.Confirmation())
			}
			ui.Interfaces(cmd.OutOrStdout(), ed.Interfaces())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "add", "", "name of the interface to add")
	cmd.Flags().StringVar(&ip, "ip", "", "address of the added interface")
	cmd.Flags().IntVar(&mask, "mask", properties.DefaultMaskBits, "prefix length when --ip has none")
	return cmd
}
