package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/app"
	"github.com/HerbHall/netcanvas/internal/topology"
	"github.com/HerbHall/netcanvas/internal/ui"
)

var errInvalidTopology = errors.New("topology has errors")

func (c *cli) topologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "topology",
		Aliases: []string{"topo"},
		Short:   "List, create and switch saved topologies",
	}
	cmd.AddCommand(
		c.topologyListCmd(),
		c.topologyShowCmd(),
		c.topologyCreateCmd(),
		c.topologyActivateCmd(),
		c.topologyDeleteCmd(),
		c.topologyValidateCmd(),
		c.topologyExportCmd(),
	)
	return cmd
}

// loggedIn returns the application after checking a token is stored.
func (c *cli) loggedIn(ctx context.Context) (*app.App, error) {
	a, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.RequireLogin(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid topology id %q", s)
	}
	return id, nil
}

func (c *cli) topologyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved topologies",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.Topology.ListTopologies(cmd.Context())
			if err != nil {
				return err
			}
			ui.Topologies(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func (c *cli) topologyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show the devices and links of a topology (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.loggedIn(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := loadTopology(ctx, a, id); err != nil {
					return err
				}
			} else if err := a.Canvas.Startup(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.Topology.CurrentTopologyID() == 0 {
				fmt.Fprintln(out, "  No topologies saved.")
				return nil
			}
			name, _ := currentTopology(a)
			ui.Banner(out, name)
			ui.Devices(out, a.Topology.Devices(), a.Topology.Connections())
			return nil
		},
	}
}

// loadTopology loads topology id and the catalog naming it.
func loadTopology(ctx context.Context, a *app.App, id int) error {
	if err := a.Topology.LoadTopology(ctx, id); err != nil {
		return err
	}
	_, err := a.Topology.ListTopologies(ctx)
	return err
}

// currentTopology returns the name and description of the loaded topology.
func currentTopology(a *app.App) (name, description string) {
	id := a.Topology.CurrentTopologyID()
	for _, t := range a.Topology.Topologies() {
		if t.ID == id {
			return t.Name, t.Description
		}
	}
	return fmt.Sprintf("topology %d", id), ""
}

func (c *cli) topologyCreateCmd() *cobra.Command {
	var description, file string
	var fromCurrent bool
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a topology and make it active",
		Long: "Create an empty topology, a copy of the active one (--from-current)\n" +
			"or one described by a YAML document (-f).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.loggedIn(ctx)
			if err != nil {
				return err
			}
			var id int
			switch {
			case file != "":
				doc, err := readDocument(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if len(args) == 1 {
					doc.Name = args[0]
				}
				if description != "" {
					doc.Description = description
				}
				id, err = a.Topology.CreateFromPayload(ctx, doc.Payload())
				if err != nil {
					return err
				}
			case len(args) == 0:
				return fmt.Errorf("a name is required unless -f is given")
			default:
				if fromCurrent {
					if err := a.Canvas.Startup(ctx); err != nil {
						return err
					}
				}
				id, err = a.Topology.CreateTopology(ctx, args[0], description)
				if err != nil {
					return err
				}
			}
			ui.Success(cmd.OutOrStdout(), "Created topology %d", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "topology description")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML topology document ('-' for stdin)")
	cmd.Flags().BoolVar(&fromCurrent, "from-current", false, "copy the devices and links of the active topology")
	return cmd
}

func readDocument(path string, stdin io.Reader) (*topology.Document, error) {
	if path == "-" {
		return topology.ReadDocument(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return topology.ReadDocument(f)
}

func (c *cli) topologyActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Make a topology active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Topology.ActivateTopology(cmd.Context(), id); err != nil {
				return err
			}
			name, _ := currentTopology(a)
			ui.Success(cmd.OutOrStdout(), "Activated %s", name)
			return nil
		},
	}
}

func (c *cli) topologyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a topology",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Topology.DeleteTopology(cmd.Context(), id); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Deleted topology %d", id)
			return nil
		},
	}
}

func (c *cli) topologyValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the active topology for addressing and wiring problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.loggedIn(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Canvas.Validate(cmd.Context())
			if err != nil {
				return err
			}
			ui.Validation(cmd.OutOrStdout(), res)
			if !res.Valid {
				return errInvalidTopology
			}
			return nil
		},
	}
}

func (c *cli) topologyExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Write a topology as a YAML document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.loggedIn(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := loadTopology(ctx, a, id); err != nil {
					return err
				}
			} else if err := a.Canvas.Startup(ctx); err != nil {
				return err
			}
			if a.Topology.CurrentTopologyID() == 0 {
				return fmt.Errorf("no topology to export")
			}
			name, desc := currentTopology(a)
			doc := topology.NewDocument(name, desc, a.Topology.Devices(), a.Topology.Connections())

			if output == "" || output == "-" {
				return topology.WriteDocument(cmd.OutOrStdout(), doc)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := topology.WriteDocument(f, doc); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			ui.Success(cmd.ErrOrStderr(), "Wrote %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}
