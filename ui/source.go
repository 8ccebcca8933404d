package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agnosto/board-collector/dashboard"
	"github.com/agnosto/board-collector/logger"
	"github.com/agnosto/board-collector/service"
	tea "github.com/charmbracelet/bubbletea"
)

// ChannelPublisher hands cycle results from an in-process collector to the
// watch view. Results are dropped while the view is behind.
type ChannelPublisher struct {
	ch chan service.CycleResult
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan service.CycleResult, buffer)}
}

func (p *ChannelPublisher) Publish(result service.CycleResult) {
	select {
	case p.ch <- result:
	default:
		logger.Logger.Printf("[ERROR] [ui] view is behind, dropping cycle %s", result.ID)
	}
}

// Close ends the watch view once the buffered results are consumed.
func (p *ChannelPublisher) Close() {
	close(p.ch)
}

func (p *ChannelPublisher) Source() Source {
	return func() tea.Msg {
		r, ok := <-p.ch
		if !ok {
			return sourceClosedMsg{}
		}
		return resultMsg{result: &r}
	}
}

// PollLatest polls the dashboard's /latest endpoint of a running collector.
// The first poll happens immediately.
func PollLatest(baseURL string, interval time.Duration) Source {
	client := &http.Client{Timeout: 10 * time.Second}
	url := strings.TrimRight(baseURL, "/") + "/latest"
	first := true

	return func() tea.Msg {
		if !first {
			time.Sleep(interval)
		}
		first = false

		resp, err := client.Get(url)
		if err != nil {
			return sourceErrMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return sourceErrMsg{err: fmt.Errorf("%s returned status %d", url, resp.StatusCode)}
		}

		var latest dashboard.Latest
		if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
			return sourceErrMsg{err: fmt.Errorf("failed to decode %s: %w", url, err)}
		}
		return resultMsg{result: latest.Result, rates: latest.Rates}
	}
}
