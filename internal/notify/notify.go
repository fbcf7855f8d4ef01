// Package notify turns fired reminder payloads into desktop notifications.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-lunar-birthday/internal/alarm"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
)

// TitleFormatter localizes the notification title for a name.
type TitleFormatter func(name string) string

// Build maps a payload to a notification. It depends on nothing but its
// arguments; missing fields fall back to generic text.
func Build(p alarm.Payload, title TitleFormatter) *fyne.Notification {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = config.FallbackNotifName
	}
	message := strings.TrimSpace(p.Message)
	if message == "" {
		message = config.FallbackNotifMessage
	}

	heading := ""
	if title != nil {
		heading = title(name)
	}
	if heading == "" {
		heading = fmt.Sprintf(config.FallbackNotifTitle, name)
	}
	return fyne.NewNotification(heading, message)
}

// Sender is the part of fyne.App used to show notifications.
type Sender interface {
	SendNotification(*fyne.Notification)
}

// Handler delivers fired reminders.
type Handler struct {
	Sender Sender
	Title  TitleFormatter
}

// Deliver builds and sends the notification of one fired payload.
func (h *Handler) Deliver(p alarm.Payload) {
	n := Build(p, h.Title)
	if h.Sender != nil {
		h.Sender.SendNotification(n)
	}
	slog.Info(config.MsgNotifSent,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyRecordID, p.RecordID,
		config.LogKeyCode, p.RequestCode)
}
