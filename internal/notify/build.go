package notify

import (
	"fmt"

	"github.com/wonny/marginrecon/pkg/config"
	"github.com/wonny/marginrecon/pkg/httputil"
	"github.com/wonny/marginrecon/pkg/logger"
)

// Build assembles the sinks named in cfg.Sinks. feed is the websocket
// broadcaster, nil outside the API server; "ws" is ignored without one.
func Build(cfg config.NotifyConfig, log *logger.Logger, feed Sink) (Sink, error) {
	var sinks Multi
	for _, name := range cfg.Sinks {
		switch name {
		case "console":
			sinks = append(sinks, NewConsole(nil))
		case "webhook":
			sinks = append(sinks, NewWebhook(cfg.WebhookURL, httputil.New(log), cfg.WebhookRPS, log))
		case "xlsx":
			sinks = append(sinks, NewSpreadsheet(cfg.SpreadsheetDir))
		case "ws":
			if feed == nil {
				log.Warn("ws sink requested without a websocket feed, skipping")
				continue
			}
			sinks = append(sinks, feed)
		default:
			return nil, fmt.Errorf("unknown notify sink %q", name)
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, NewConsole(nil))
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}
