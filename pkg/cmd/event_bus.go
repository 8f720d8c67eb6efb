package cmd

import (
	"github.com/ccxxllhl2/ai-workflow/pkg/eventbus"
)

// NewEventBus creates an event bus by provider name. "none" disables
// publishing; "gochannel" (the default) runs an in-process bus.
func NewEventBus(provider string) eventbus.EventBus {
	switch provider {
	case "none":
		return nil
	default:
		return eventbus.NewGoChannelEventBus()
	}
}
