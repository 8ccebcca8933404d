package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/logger"
	ksvc "github.com/kardianos/service"
)

type Program struct {
	cfg    *config.Config
	app    *App
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *Program) Start(s ksvc.Service) error {
	ctx, cancel := context.WithCancel(context.Background())

	app, err := NewApp(ctx, p.cfg)
	if err != nil {
		cancel()
		return err
	}

	p.app = app
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

func (p *Program) run(ctx context.Context) {
	defer close(p.done)

	if p.app.Hub != nil {
		go p.app.Hub.ListenAndServe(ctx)
	}
	if err := p.app.Collector.RunForever(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Logger.Printf("[ERROR] [service] %v", err)
	}
}

func (p *Program) Stop(s ksvc.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return p.app.Close()
}

func newService(cfg *config.Config) (ksvc.Service, error) {
	svcConfig := &ksvc.Config{
		Name:        "BoardCollector",
		DisplayName: "Board Collector Service",
		Description: fmt.Sprintf("Collects activity, images and texts of /%s/.", cfg.Board.Name),
		Arguments:   []string{"service"},
	}
	return ksvc.New(&Program{cfg: cfg}, svcConfig)
}

// RunService runs the collector under the platform service manager, or
// performs action (install, uninstall, start, stop, restart) when set.
func RunService(cfg *config.Config, action string) error {
	s, err := newService(cfg)
	if err != nil {
		return fmt.Errorf("error creating service: %w", err)
	}

	if action != "" {
		if err := ksvc.Control(s, action); err != nil {
			return fmt.Errorf("service %s failed (valid actions: %v): %w", action, ksvc.ControlAction, err)
		}
		successColor.Printf("Service %s done\n", action)
		return nil
	}

	if err := s.Run(); err != nil {
		logger.Logger.Printf("Error running service: %v", err)
		return err
	}
	return nil
}
