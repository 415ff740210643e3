package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/mephissto/simple-digital/internal/adapter/memhost"
	"github.com/mephissto/simple-digital/internal/config"
	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/logger"
	"github.com/mephissto/simple-digital/internal/service"
)

// defaultSimulatedResponse is what the configuration page returns when the
// date toggle is switched on.
const defaultSimulatedResponse = "%7B%22date%22%3A%22true%22%7D"

func runSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	response := fs.String("response", defaultSimulatedResponse, "URL-encoded configuration page result")
	openErr := fs.String("fail-open", "", "make the host refuse to open the page with this reason")
	sendErr := fs.String("fail-send", "", "make the watch reject the settings with this reason")
	verbose := fs.Bool("v", false, "log relay activity to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logCfg := config.Defaults().Logging
	logCfg.Format = "text"
	if !*verbose {
		logCfg.Level = "error"
	}
	log := logger.NewWriter(logCfg, os.Stderr, false)

	return simulate(context.Background(), os.Stdout, log, simulation{
		response: *response,
		openErr:  *openErr,
		sendErr:  *sendErr,
	})
}

type simulation struct {
	response string
	openErr  string
	sendErr  string
}

// simulate fires ready, showConfiguration and webviewclosed at a relay bound
// to an in-memory host and reports what the host saw.
func simulate(ctx context.Context, out io.Writer, log *slog.Logger, sim simulation) error {
	h := memhost.New()
	if sim.openErr != "" {
		h.SetOpenError(errors.New(sim.openErr))
	}
	if sim.sendErr != "" {
		h.SetSendError(errors.New(sim.sendErr))
	}

	service.NewRelay(h, service.WithLogger(log)).Register()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EVENT\tRESULT")

	events := []lifecycle.Event{
		lifecycle.New(lifecycle.Ready, ""),
		lifecycle.New(lifecycle.ShowConfiguration, ""),
		lifecycle.New(lifecycle.WebviewClosed, sim.response),
	}
	for _, e := range events {
		result := "ok"
		if err := h.Fire(ctx, e); err != nil {
			result = "error: " + err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Name, result)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(out)
	for _, u := range h.Opened() {
		_, _ = fmt.Fprintf(out, "opened:   %s\n", u)
	}
	results := h.Results()
	for i, msg := range h.Sent() {
		keys := make([]string, 0, len(msg))
		for k := range msg {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(out, "sent:     %s=%q\n", k, msg[k])
		}
		if res := results[i]; !res.OK() {
			_, _ = fmt.Fprintf(out, "delivery: failed (%v)\n", res.Err)
		} else {
			_, _ = fmt.Fprintln(out, "delivery: acknowledged")
		}
	}
	_, _ = fmt.Fprintf(out, "display:  show_date=%t\n", h.Display().ShowDate)
	return nil
}
