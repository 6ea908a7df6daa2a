package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/livedesk/internal/config"
	"github.com/manav03panchal/livedesk/internal/runtime"
)

// withCompletionRuntime runs fn with a runtime context. Completion runs
// without the persistent hooks, so the store is opened here when needed.
func withCompletionRuntime(fn func(context.Context) []string) ([]string, cobra.ShellCompDirective) {
	if ctx == nil {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		opts := runtime.DefaultOptions()
		opts.Config = cfg
		ctx, err = runtime.New(opts)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		defer func() {
			_ = ctx.Close()
			ctx = nil
		}()
	}
	return fn(context.Background()), cobra.ShellCompDirectiveNoFileComp
}

// completeWebhookArgs provides completion for webhook names.
func completeWebhookArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withCompletionRuntime(func(c context.Context) []string {
		webhooks, err := ctx.Webhooks.List(c)
		if err != nil {
			return nil
		}
		var names []string
		for _, wh := range webhooks {
			if strings.HasPrefix(wh.Name, toComplete) {
				names = append(names, wh.Name+"\t"+wh.Type)
			}
		}
		return names
	})
}

// completeBusinessHourArgs provides completion for business hour ids.
func completeBusinessHourArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withCompletionRuntime(func(c context.Context) []string {
		hours, err := ctx.BusinessHours.List(c)
		if err != nil {
			return nil
		}
		var ids []string
		for _, b := range hours {
			if strings.HasPrefix(b.ID, toComplete) {
				ids = append(ids, b.ID+"\t"+b.DisplayName())
			}
		}
		return ids
	})
}
