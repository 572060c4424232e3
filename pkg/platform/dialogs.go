package platform

import "context"

// ConfirmDialog describes a blocking two-button alert.
type ConfirmDialog struct {
	Message       string
	PositiveLabel string
	NegativeLabel string
}

// ToastDuration selects how long a toast stays on screen.
type ToastDuration string

const (
	ToastShort ToastDuration = "short"
	ToastLong  ToastDuration = "long"
)

// DialogService shows alerts and toasts on the host.
type DialogService struct {
	channel *MethodChannel
}

// Dialogs is the singleton dialog service.
var Dialogs = &DialogService{
	channel: NewMethodChannel("locate/dialogs"),
}

// Confirm shows d and blocks until the user picks a button. accepted is
// true for the positive button; dismissing counts as negative.
func (s *DialogService) Confirm(ctx context.Context, d ConfirmDialog) (accepted bool, err error) {
	if d.PositiveLabel == "" {
		d.PositiveLabel = "Ok"
	}
	if d.NegativeLabel == "" {
		d.NegativeLabel = "Cancel"
	}
	result, err := s.channel.Invoke("confirm", map[string]any{
		"message":  d.Message,
		"positive": d.PositiveLabel,
		"negative": d.NegativeLabel,
	})
	if err != nil {
		return false, err
	}
	if m := parseMap(result); m != nil {
		return parseBool(m["accepted"]), nil
	}
	return false, nil
}

// Toast shows a transient message.
func (s *DialogService) Toast(ctx context.Context, text string, d ToastDuration) error {
	_, err := s.channel.Invoke("toast", map[string]any{
		"text":     text,
		"duration": string(d),
	})
	return err
}
