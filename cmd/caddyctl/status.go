package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/valet-linux/caddyd/internal/caddy"
)

var statusOpts struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether Caddy is installed, enabled and running",
	Long: `Report the unit file, systemd's enabled and active state, the generated
Caddyfile and site directory, and any running caddy processes.

Nothing is changed, so status does not need root.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.json, "json", false,
		"Output status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.manager.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}

	if statusOpts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	return printStatus(cmd.OutOrStdout(), st, time.Now())
}

func printStatus(w io.Writer, st caddy.Status, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "service:\t%s\n", st.Service)
	fmt.Fprintf(tw, "unit file:\t%s (%s)\n", st.UnitPath, presence(st.Installed))
	fmt.Fprintf(tw, "enabled:\t%s\n", yesNo(st.Enabled))
	fmt.Fprintf(tw, "active:\t%s\n", yesNo(st.Active))
	fmt.Fprintf(tw, "Caddyfile:\t%s\n", presence(st.Caddyfile))
	fmt.Fprintf(tw, "site directory:\t%s\n", presence(st.SiteDirectory))

	if len(st.Processes) == 0 {
		fmt.Fprintf(tw, "processes:\tnone\n")
	}
	for i, p := range st.Processes {
		label := ""
		if i == 0 {
			label = "processes:"
		}
		fmt.Fprintf(tw, "%s\tpid %d %s, %s, up %s\n",
			label, p.PID, p.Status, humanize.IBytes(p.RSS), now.Sub(p.Started).Truncate(time.Second))
	}
	return tw.Flush()
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
