package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TI02-jp/site-sub001/internal/service"
)

// Warmer периодически прогревает кэш внешней ленты, чтобы интерактивные
// чтения чаще попадали в непросроченный кэш
type Warmer struct {
	reconcile *service.ReconcileService
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
}

// NewWarmer создаёт новый прогрев ленты
func NewWarmer(reconcile *service.ReconcileService, interval time.Duration, logger *zap.Logger) *Warmer {
	return &Warmer{
		reconcile: reconcile,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновый прогрев
func (w *Warmer) Start(ctx context.Context) {
	w.logger.Info("Starting calendar feed warmer",
		zap.Duration("interval", w.interval),
	)

	go w.run(ctx)
}

// Stop останавливает фоновый прогрев
func (w *Warmer) Stop() {
	w.logger.Info("Stopping calendar feed warmer")
	close(w.stopChan)
}

func (w *Warmer) run(ctx context.Context) {
	// Первый прогрев сразу при старте
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.refresh(ctx)
		case <-w.stopChan:
			w.logger.Info("Feed warmer stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Feed warmer cancelled")
			return
		}
	}
}

func (w *Warmer) refresh(ctx context.Context) {
	// Ошибка прогрева не фатальна: читатели деградируют на кэш сами
	if err := w.reconcile.RefreshFeed(ctx); err != nil {
		w.logger.Error("Failed to refresh calendar feed", zap.Error(err))
	}
}
