package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels
// for the SSE handler's select loop. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAll bridges every event type onto ch and returns a single
// unsubscribe function.
func SubscribeAll(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[DeviceEvent](bus, ch),
		SubscribeToChannel[StreamStateEvent](bus, ch),
		SubscribeToChannel[FormatChangedEvent](bus, ch),
		SubscribeToChannel[ControlChangedEvent](bus, ch),
		SubscribeToChannel[FrameCapturedEvent](bus, ch),
		SubscribeToChannel[OperationFailedEvent](bus, ch),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
