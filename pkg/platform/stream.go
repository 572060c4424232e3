package platform

import "github.com/go-drift/locate/pkg/errors"

// Stream provides a multi-subscriber broadcast of typed platform events.
// Every listener receives every event independently.
type Stream[T any] struct {
	eventChannel *EventChannel
	parser       func(data any) (T, error)
}

// Listen subscribes to events and returns an unsubscribe function.
// Parse failures and stream errors are reported via errors.Report and do
// not reach the handler.
func (s *Stream[T]) Listen(handler func(T)) (unsubscribe func()) {
	name := s.eventChannel.Name()
	sub := s.eventChannel.Listen(EventHandler{
		OnEvent: func(data any) {
			val, err := s.parser(data)
			if err != nil {
				errors.Report(&errors.Error{
					Op:      "stream.parse",
					Kind:    errors.KindParsing,
					Channel: name,
					Err:     err,
				})
				return
			}
			handler(val)
		},
		OnError: func(err error) {
			errors.Report(&errors.Error{
				Op:      "stream.error",
				Kind:    errors.KindPlatform,
				Channel: name,
				Err:     err,
			})
		},
	})
	return sub.Cancel
}

// NewStream creates a Stream wrapping an EventChannel.
func NewStream[T any](channel *EventChannel, parser func(data any) (T, error)) *Stream[T] {
	return &Stream[T]{
		eventChannel: channel,
		parser:       parser,
	}
}
