// Package schemes implements the schemes command.
package schemes

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/adapters"
	"github.com/tphakala/pushcore/internal/registry"
)

// Command returns the schemes command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List supported URL schemes and adapter capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Print(cmd.OutOrStdout(), adapters.Default())
		},
	}
}

// Print writes one row per adapter in reg.
func Print(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADAPTER\tSCHEMES\tMAX BODY\tMAX TITLE\tATTACHMENTS\tBATCH\tTHROTTLE")

	for _, d := range reg.Descriptors() {
		var enabled []string
		for _, s := range d.AllSchemes() {
			if reg.Enabled(s) {
				enabled = append(enabled, s)
			}
		}
		if len(enabled) == 0 {
			continue
		}

		c := d.Capabilities
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name,
			strings.Join(enabled, ","),
			limit(c.MaxBodyLength),
			titleLimit(c.MaxTitleLength),
			yesNo(c.SupportsAttachments),
			batch(c),
			c.ThrottleInterval,
		)
	}
	return tw.Flush()
}

func limit(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func titleLimit(n int) string {
	switch {
	case n == adapter.UnlimitedTitle:
		return "-"
	case n == 0:
		return "in body"
	default:
		return strconv.Itoa(n)
	}
}

func batch(c adapter.Capabilities) string {
	if !c.SupportsBatch {
		return "no"
	}
	return "max " + limit(c.MaxBatchSize)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
