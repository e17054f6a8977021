// Package ui carries the host-side collaborators the view-models talk to:
// toast notifications, page navigation, the system clipboard and events
// dispatched back to the hosting surface.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"
	"go.uber.org/zap"
)

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantWarning Variant = "warning"
	VariantInfo    Variant = "info"
)

// Toast is a transient user notification.
type Toast struct {
	Title   string
	Message string
	Variant Variant
}

type Notifier interface {
	Notify(t Toast)
}

// Navigator performs an external page navigation.
type Navigator interface {
	Navigate(url string) error
}

type Clipboard interface {
	WriteText(text string) error
}

// Event is dispatched from a component to its host.
type Event struct {
	Name   string
	Detail any
}

type EventSink interface {
	Dispatch(e Event)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Dispatch(e Event) { f(e) }

// LogNotifier writes toasts to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(t Toast) {
	fields := []zap.Field{zap.String("title", t.Title), zap.String("message", t.Message)}
	switch t.Variant {
	case VariantError:
		n.logger.Error("toast", fields...)
	case VariantWarning:
		n.logger.Warn("toast", fields...)
	default:
		n.logger.Info("toast", fields...)
	}
}

// WriterNotifier prints one line per toast, e.g. for a terminal host.
type WriterNotifier struct {
	w io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Notify(t Toast) {
	fmt.Fprintf(n.w, "[%s] %s: %s\n", strings.ToUpper(string(t.Variant)), t.Title, t.Message)
}

// BrowserNavigator opens URLs in the user's default browser.
type BrowserNavigator struct{}

func (BrowserNavigator) Navigate(url string) error {
	return browser.OpenURL(url)
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("ui: clipboard unsupported on this platform")
	}
	return clipboard.WriteAll(text)
}
