package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/app"
	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/reach"
	"github.com/HerbHall/netcanvas/internal/remote"
	"github.com/HerbHall/netcanvas/internal/ui"
)

const doctorTimeout = 5 * time.Second

var errUnhealthy = errors.New("one or more checks failed")

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"dr"},
		Short:   "Check configuration, credentials and the lab service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			a, err := c.client(ctx)
			if err != nil {
				return err
			}
			ui.Banner(out, "health check")

			failed := 0
			check := func(ok bool, name, format string, args ...any) {
				if !ok {
					failed++
				}
				fmt.Fprintf(out, "  %s %s: %s\n", ui.StatusIcon(ok), name, fmt.Sprintf(format, args...))
			}

			if f := c.cfg.File(); f != "" {
				check(true, "config", "%s", f)
			} else {
				check(true, "config", "defaults (no config file)")
			}
			check(true, "state", "%s", a.Settings.Storage.Path)

			tok, err := a.Prefs.Token(ctx)
			switch {
			case err != nil:
				check(false, "token", "%v", err)
			case tok == "":
				check(false, "token", "not set, run `netcanvas auth set-token`")
			case auth.TokenExpired(tok, a.Clock.Now()):
				check(false, "token", "expired")
			default:
				check(true, "token", "present")
			}

			ver, err := c.health(ctx, a)
			if err != nil {
				check(false, "lab service", "%s: %v", a.Settings.API.BaseURL, err)
			} else {
				check(true, "lab service", "%s (version %s)", a.Settings.API.BaseURL, ver)
			}

			if tok != "" && err == nil {
				list, err := a.Client.ListTopologies(ctx)
				if err != nil {
					check(false, "api", "%s", remote.Message(err, err.Error()))
				} else {
					check(true, "api", "%d topologies", len(list))
				}
			}

			c.reachability(ctx, out, a)

			if failed > 0 {
				return errUnhealthy
			}
			return nil
		},
	}
}

// health probes the unauthenticated health endpoint and returns the
// service version.
func (c *cli) health(ctx context.Context, a *app.App) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.Settings.API.BaseURL+"/health", http.NoBody)
	if err != nil {
		return "", err
	}
	hc := c.opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: doctorTimeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Version map[string]string `json:"version"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode health: %w", err)
	}
	if v := body.Version["version"]; v != "" {
		return v, nil
	}
	return resp.Header.Get("X-Netcanvas-Version"), nil
}

// reachability pings the service host. Unprivileged ICMP is often not
// permitted, so a failure is a warning only.
func (c *cli) reachability(ctx context.Context, out io.Writer, a *app.App) {
	checker := c.checker
	if checker == nil {
		checker = reach.NewICMPChecker(doctorTimeout, 3)
	}
	res, err := reach.Service(ctx, checker, a.Settings.API.BaseURL)
	switch {
	case err != nil:
		fmt.Fprintf(out, "  %s icmp: %v\n", ui.WarnIcon(), err)
	case !res.Success:
		fmt.Fprintf(out, "  %s icmp: %s unreachable (%s)\n", ui.WarnIcon(), res.Target, res.Error)
	default:
		fmt.Fprintf(out, "  %s icmp: %s %.1f ms\n", ui.StatusIcon(true), res.Target, res.LatencyMs)
	}
}
