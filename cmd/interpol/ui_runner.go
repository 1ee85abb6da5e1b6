package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"interpol/internal/driver"
	"interpol/internal/ui"
)

type rewriteOutcome struct {
	result *driver.Result
	err    error
}

func runRewriteWithUI(ctx context.Context, title string, opts driver.Options) (*driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan rewriteOutcome, 1)

	go func() {
		opts.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Rewrite(ctx, opts)
		outcomeCh <- rewriteOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// модель больше не читает канал; дочитываем, чтобы driver не встал
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if outcome.err == nil && uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
