// Package send implements the send command.
package send

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/pushcore/internal/adapter"
	"github.com/tphakala/pushcore/internal/adapters"
	"github.com/tphakala/pushcore/internal/attachment"
	"github.com/tphakala/pushcore/internal/conf"
	"github.com/tphakala/pushcore/internal/dispatch"
	"github.com/tphakala/pushcore/internal/errors"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/observability"
	"github.com/tphakala/pushcore/internal/observability/metrics"
	"github.com/tphakala/pushcore/internal/registry"
)

// Flags holds the send command line options.
type Flags struct {
	Title         string
	Body          string
	Type          string
	Format        string
	Attach        []string
	Tags          []string
	URLsFile      string
	MetricsListen string
}

// Command returns the send command. settings is filled in by the root
// command before RunE is called.
func Command(settings *conf.Settings) *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "send [url...]",
		Short: "Send a notification to every URL",
		Long: `Send a notification to the URLs given as arguments, or to the URLs from the
configuration when none are given.

Examples:
  # Body from a flag
  pushcore send --title="Owl" --body="Tawny owl at the feeder" json://hooks.example.org/birds

  # Body from stdin, only to URLs tagged garden
  echo "Robin spotted" | pushcore send --tag=garden --urls-file=urls.yaml

  # With an attachment
  pushcore send --body="Snapshot" --attach=/var/lib/cam/last.jpg mqtt://broker/alerts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, &flags, args, adapters.Default())
		},
	}

	cmd.Flags().StringVar(&flags.Title, "title", "", "Notification title")
	cmd.Flags().StringVar(&flags.Body, "body", "", "Notification body (read from stdin when empty)")
	cmd.Flags().StringVar(&flags.Type, "type", "info", "Notification type: info, success, warning or failure")
	cmd.Flags().StringVar(&flags.Format, "format", "text", "Body format: text, html or markdown")
	cmd.Flags().StringArrayVar(&flags.Attach, "attach", nil, "Attachment path or URL (repeatable)")
	cmd.Flags().StringSliceVar(&flags.Tags, "tag", nil, "Only notify URLs carrying one of these tags")
	cmd.Flags().StringVar(&flags.URLsFile, "urls-file", "", "YAML file with notification URLs")
	cmd.Flags().StringVar(&flags.MetricsListen, "metrics-listen", "", "Serve Prometheus metrics on host:port while sending")

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings, flags *Flags, args []string, reg *registry.Registry) error {
	log := logging.ForService("send")

	urls, err := collectURLs(settings, flags, args)
	if err != nil {
		return err
	}

	msg, err := buildMessage(cmd.InOrStdin(), flags)
	if err != nil {
		return err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	defer errors.AddErrorHook(countErrors(m.Dispatch))()
	if listen := firstNonEmpty(flags.MetricsListen, settings.Metrics.Listen); listen != "" {
		quit := make(chan struct{})
		var wg sync.WaitGroup
		observability.NewEndpoint(listen, m, log).Start(&wg, quit)
		defer func() {
			close(quit)
			wg.Wait()
		}()
	}

	if len(flags.Attach) > 0 {
		coll := attachment.NewCollection(settings.AccessClass(), settings.AttachmentOptions(log, m.Dispatch)...)
		for _, ref := range flags.Attach {
			if _, err := coll.AddURL(ref); err != nil {
				return err
			}
		}
		msg.Attachments = coll
	}

	d := dispatch.New(reg, settings.DispatchConfig(log, m.Dispatch))
	defer func() { _ = d.Close() }()

	summary := d.Notify(cmd.Context(), urls, msg, flags.Tags...)
	printSummary(cmd.OutOrStdout(), summary)

	switch {
	case len(summary.Results) == 0:
		return errors.Newf("no notification URL matched tags %v", flags.Tags).
			Component("dispatch").
			Category(errors.CategoryValidation).
			Build()
	case !summary.OK():
		return summary.Err()
	}
	return nil
}

// collectURLs returns the URLs from args and --urls-file, or the configured
// URLs when neither gives any.
func collectURLs(settings *conf.Settings, flags *Flags, args []string) ([]string, error) {
	urls := append([]string(nil), args...)
	if flags.URLsFile != "" {
		fromFile, err := conf.LoadURLFile(flags.URLsFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) > 0 {
		return urls, nil
	}

	urls, err := settings.AllURLs()
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.Newf("no notification URLs given").
			Component("dispatch").
			Category(errors.CategoryValidation).
			Build()
	}
	return urls, nil
}

func buildMessage(stdin io.Reader, flags *Flags) (*adapter.Message, error) {
	ntype, err := adapter.ParseNotifyType(flags.Type)
	if err != nil {
		return nil, err
	}
	format, err := adapter.ParseFormat(flags.Format)
	if err != nil {
		return nil, err
	}

	body := flags.Body
	if body == "" && !isTerminal(stdin) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.New(err).
				Component("dispatch").
				Category(errors.CategoryValidation).
				Build()
		}
		body = strings.TrimRight(string(data), "\r\n")
	}

	return &adapter.Message{
		Title:  flags.Title,
		Body:   body,
		Type:   ntype,
		Format: format,
	}, nil
}

// isTerminal reports whether r is an interactive terminal, in which case
// nothing is read from it.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func printSummary(w io.Writer, s *dispatch.Summary) {
	for _, r := range s.Results {
		if r.OK {
			fmt.Fprintf(w, "ok    %-8s %s (%s)\n", r.Scheme, r.URL, r.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "FAIL  %-8s %s: %v\n", r.Scheme, r.URL, r.Err)
	}
	fmt.Fprintf(w, "%d sent, %d failed, %d skipped (dispatch %s)\n",
		len(s.Results)-s.Failed(), s.Failed(), s.Skipped, s.ID)
}

// countErrors feeds every built error into the errors counter.
func countErrors(m *metrics.DispatchMetrics) errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.RecordError(ee.GetComponent(), ee.GetCategory())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
