package platform

import "context"

// TextView is a host text widget addressed by id.
type TextView struct {
	id      string
	channel *MethodChannel
}

var viewChannel = NewMethodChannel("locate/view")

// NewTextView returns a handle to the host text view with the given id.
func NewTextView(id string) *TextView {
	return &TextView{id: id, channel: viewChannel}
}

// ID returns the view id.
func (v *TextView) ID() string {
	return v.id
}

// SetText replaces the view's text.
func (v *TextView) SetText(ctx context.Context, text string) error {
	_, err := v.channel.Invoke("setText", map[string]any{
		"id":   v.id,
		"text": text,
	})
	return err
}
