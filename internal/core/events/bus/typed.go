package bus

import "fmt"

// SubscribeData subscribes to eventType and hands the handler the event
// payload already asserted to T. Events carrying another payload type are
// reported as errors.
func SubscribeData[T any](b EventBus, eventType string, fn func(tick uint64, data T)) (Subscription, error) {
	return b.Subscribe(eventType, func(e Event) error {
		data, ok := e.Data().(T)
		if !ok {
			return fmt.Errorf("%s: payload %T: %w", eventType, e.Data(), ErrPayloadType)
		}
		fn(e.Tick(), data)
		return nil
	})
}
