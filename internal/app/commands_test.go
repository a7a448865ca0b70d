package app

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestCommands_Tick(t *testing.T) {
	if NewCommands(nil, time.Millisecond).Tick() == nil {
		t.Error("Tick returned nil")
	}
	if NewCommands(nil, 0).Tick() == nil {
		t.Error("Tick with zero interval returned nil")
	}
}

func TestCommands_NilManager(t *testing.T) {
	cmds := NewCommands(nil, time.Second)
	if cmds.Refresh() != nil {
		t.Error("Refresh without manager should be nil")
	}
	if cmds.LoadThresholds() != nil {
		t.Error("LoadThresholds without manager should be nil")
	}
	if cmds.Analyze() != nil {
		t.Error("Analyze without manager should be nil")
	}
}

func TestCommands_Notifications(t *testing.T) {
	cmds := NewCommands(nil, time.Second)

	tests := []struct {
		name string
		fn   func(string) tea.Cmd
		want NotificationType
	}{
		{"Success", cmds.NotifySuccess, NotificationSuccess},
		{"Error", cmds.NotifyError, NotificationError},
		{"Warning", cmds.NotifyWarning, NotificationWarning},
		{"Info", cmds.NotifyInfo, NotificationInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.fn("msg")()

			addMsg, ok := msg.(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", msg)
			}
			if addMsg.Type != tt.want {
				t.Errorf("Type = %v, want %v", addMsg.Type, tt.want)
			}
			if addMsg.Message != "msg" {
				t.Errorf("Message = %q, want msg", addMsg.Message)
			}
			if addMsg.Duration <= 0 {
				t.Error("notification should expire")
			}
		})
	}
}

func TestCommands_ClearNotification(t *testing.T) {
	if NewCommands(nil, time.Second).ClearNotification("id", time.Millisecond) == nil {
		t.Error("ClearNotification returned nil")
	}
}

func TestCommands_Quit(t *testing.T) {
	msg := NewCommands(nil, time.Second).Quit()()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("Expected QuitMsg, got %T", msg)
	}
}
