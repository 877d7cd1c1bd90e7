package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"mhgscraper/pkg/config"
	"mhgscraper/pkg/scraper"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("mhgscraper").Show($toast)
	`, title, message)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// TerminalBellSender rings the terminal bell instead of a desktop popup
type TerminalBellSender struct {
	W io.Writer
}

func (t *TerminalBellSender) Send(title, message string) error {
	_, err := fmt.Fprint(t.W, "\a")
	return err
}

// Notifier reports the end of a run
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender from cfg. A disabled config returns a
// Notifier that only prints to the console.
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	if !cfg.Enabled {
		return &Notifier{}
	}

	switch strings.ToLower(cfg.Type) {
	case "none":
		return &Notifier{}
	case "terminal":
		return &Notifier{sender: &TerminalBellSender{W: out}}
	default:
		return &Notifier{sender: platformSender()}
	}
}

// NewNotifierWithSender is used by tests and callers with their own sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// RunFinished announces a finished series run
func (n *Notifier) RunFinished(series string, report *scraper.Report, err error) {
	if err != nil {
		n.SendError("Download failed", fmt.Sprintf("%s: %v", series, err))
		return
	}

	completed, skipped := 0, 0
	if report != nil {
		completed, skipped = report.Completed, report.Skipped
	}
	n.SendSuccess("Download complete", fmt.Sprintf("%s: %d chapters, %d skipped", series, completed, skipped))
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	if !IsQuietMode() {
		fmt.Fprintf(out, "\n%s: %s\n", Green(title), Green(message))
	}
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// Notifications are best effort
		_ = n.sender.Send(title, message)
	}
}
