package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ingestor/internal/api"
	"ingestor/internal/events"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var useNATS bool
	var jsonOutput bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "watch [job-id]",
		Short: "Stream progress events for one job or every job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := ""
			if len(args) == 1 {
				jobID = args[0]
			}
			emit := eventPrinter(cmd, jsonOutput)
			if useNATS {
				return watchNATS(cmd, ctx, jobID, emit)
			}
			return ctx.wrapDialError(watchAPI(cmd, ctx.client(), jobID, wait, emit))
		},
	}
	cmd.Flags().BoolVar(&useNATS, "nats", false, "Subscribe to the NATS event subjects instead of polling the API")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print one JSON event per line")
	cmd.Flags().DurationVar(&wait, "wait", 20*time.Second, "Long-poll interval")
	return cmd
}

// eventPrinter returns the output function shared by the API and NATS paths.
func eventPrinter(cmd *cobra.Command, jsonOutput bool) func(api.Event) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	return func(evt api.Event) error {
		if jsonOutput {
			return writeJSONLine(cmd, evt)
		}
		_, err := fmt.Fprintln(out, renderEvent(evt, colorize))
		return err
	}
}

// watchAPI long-polls the event stream of one job, or of every job when
// jobID is empty. A single-job watch ends at the job's terminal event.
func watchAPI(cmd *cobra.Command, client *api.Client, jobID string, wait time.Duration, emit func(api.Event) error) error {
	var since uint64
	for {
		page, err := client.Events(cmd.Context(), jobID, since, wait)
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		}
		since = page.Next
		for _, evt := range page.Events {
			if err := emit(evt); err != nil {
				return err
			}
			if jobID != "" && evt.IsTerminal() {
				return nil
			}
		}
	}
}

func watchNATS(cmd *cobra.Command, ctx *commandContext, jobID string, emit func(api.Event) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is not configured")
	}
	sink, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer sink.Close()

	received := make(chan events.Event, 64)
	sub, err := sink.Subscribe(jobID, func(evt events.Event) {
		select {
		case received <- evt:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", events.Subject(cfg.NATS.SubjectPrefix, jobID))
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case evt := <-received:
			dto := api.FromEvent(evt)
			if err := emit(dto); err != nil {
				return err
			}
			if jobID != "" && dto.IsTerminal() {
				return nil
			}
		}
	}
}
