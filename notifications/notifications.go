package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/logger"
	"github.com/gen2brain/beeep"
)

const (
	colorRed  = 15158332
	colorBlue = 3447003
)

type NotificationService struct {
	config     *config.Config
	httpClient *http.Client
	notify     func(title, message, icon string) error
}

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		notify: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
}

// NotifyRestart is sent every time the collector loop restarts after a failure.
func (ns *NotificationService) NotifyRestart(err error, delay time.Duration) {
	if !ns.config.Notifications.Enabled || !ns.config.Notifications.NotifyOnRestart {
		return
	}

	message := fmt.Sprintf("Collector for /%s/ stopped: %v. Restarting in %s.", ns.config.Board.Name, err, delay)

	if ns.config.Notifications.SystemNotify {
		ns.sendSystemNotification(message, "Board Collector Restart", "")
	}

	if ns.config.Notifications.DiscordWebhook != "" {
		ns.sendDiscordNotification("Board Collector Restart", message, colorRed, "")
	}
}

// NotifyRepost reports an image that has been seen as often as the
// configured repost threshold.
func (ns *NotificationService) NotifyRepost(entry models.ImageEntry) {
	if !ns.config.Notifications.Enabled {
		return
	}

	message := fmt.Sprintf("Image %s has been posted %d times on /%s/.", entry.FileName, entry.TotalEncounters, ns.config.Board.Name)

	icon := filepath.Join(ns.config.OptimizedDir(), entry.FileName)
	if _, err := os.Stat(icon); err != nil {
		icon = ""
	}

	if ns.config.Notifications.SystemNotify {
		ns.sendSystemNotification(message, "Board Collector Repost", icon)
	}

	if ns.config.Notifications.DiscordWebhook != "" {
		ns.sendDiscordNotification("Board Collector Repost", message, colorBlue, fmt.Sprintf("Hash: %s", entry.Hash))
	}
}

func (ns *NotificationService) sendSystemNotification(message, title, iconPath string) {
	if err := ns.notify(title, message, iconPath); err != nil {
		logger.Logger.Printf("Failed to send system notification: %v", err)
	}
}

func (ns *NotificationService) sendDiscordNotification(title, message string, color int, footer string) error {
	type DiscordEmbed struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       int    `json:"color"`
		Timestamp   string `json:"timestamp"`
		Footer      struct {
			Text string `json:"text"`
		} `json:"footer"`
	}

	type DiscordWebhookPayload struct {
		Content string         `json:"content"`
		Embeds  []DiscordEmbed `json:"embeds"`
	}

	embed := DiscordEmbed{
		Title:       title,
		Description: message,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	embed.Footer.Text = footer

	jsonPayload, err := json.Marshal(DiscordWebhookPayload{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		logger.Logger.Printf("Failed to marshal Discord payload: %v", err)
		return err
	}

	resp, err := ns.httpClient.Post(ns.config.Notifications.DiscordWebhook, "application/json", bytes.NewBuffer(jsonPayload))
	if err != nil {
		logger.Logger.Printf("Failed to send Discord notification: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Logger.Printf("Discord webhook returned status: %d", resp.StatusCode)
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}
