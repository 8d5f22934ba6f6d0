package load

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

// LoadManager периодически перезагружает данные продаж по расписанию
type LoadManager struct {
	loader    *Loader
	logger    *utils.Logger
	interval  time.Duration
	scheduler *gocron.Scheduler
	onLoad    func(records int, err error)
}

// NewLoadManager создает новый экземпляр LoadManager.
// onLoad вызывается после каждого запланированного запуска и может быть nil.
func NewLoadManager(loader *Loader, logger *utils.Logger, interval time.Duration, onLoad func(records int, err error)) *LoadManager {
	return &LoadManager{
		loader:   loader,
		logger:   logger,
		interval: interval,
		onLoad:   onLoad,
	}
}

// Start запускает планировщик. Первый запуск выполняется сразу.
func (m *LoadManager) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("интервал перезагрузки должен быть положительным, получено: %v", m.interval)
	}
	if m.scheduler != nil {
		return errors.New("планировщик загрузки уже запущен")
	}

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	m.logger.Info("Запуск планировщика загрузки с интервалом %v", m.interval)
	_, err := scheduler.Every(m.interval).Do(func() {
		m.logger.Info("Запланированная загрузка данных")
		records, err := m.loader.Load(ctx)
		if err != nil {
			m.logger.Error("Ошибка при выполнении запланированной загрузки: %v", err)
		}
		if m.onLoad != nil {
			m.onLoad(records, err)
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка при настройке планировщика: %w", err)
	}

	scheduler.StartAsync()
	m.scheduler = scheduler
	return nil
}

// Stop останавливает планировщик
func (m *LoadManager) Stop() {
	if m.scheduler == nil {
		return
	}
	m.scheduler.Stop()
	m.scheduler = nil
	m.logger.Info("Планировщик загрузки остановлен")
}

// Run запускает планировщик и блокируется до отмены контекста
func (m *LoadManager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}
