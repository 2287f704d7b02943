// Package jobs реализует менеджер фоновых задач: ограниченный пул
// исполнителей, future с мягкой и принудительной отменой, цепочку
// перехватчиков и распространение окружения задачи (принципал, локаль,
// ExecutionContext) через context.Context.
//
// Возможности:
//   - Немедленный, отложенный, периодический (fixed rate) и cron-запуск
//   - Синхронный запуск RunNow в горутине вызывающего, включая вложенные вызовы
//   - Мягкая отмена через RunMonitor и принудительная через отмену контекста
//   - Семафор выполнения, ограничивающий одновременный запуск задач (мьютекс при одном разрешении)
//   - Расширяемая цепочка перехватчиков с фиксированным порядком встроенных
//   - События жизненного цикла для глобальных и локальных слушателей
//   - Остановка с ожиданием завершения всех выполняющихся задач
//
// Базовое использование:
//
//	m := jobs.NewManager(jobs.WithWorkers(4), jobs.WithLogger(logger))
//	defer m.Shutdown()
//
//	f, err := jobs.Schedule[int](m, jobs.Func(func(ctx context.Context) (int, error) {
//		if jobs.CurrentMonitor(ctx).IsCancelled() {
//			return 0, nil
//		}
//		return 42, nil
//	}), jobs.EmptyInput().WithName("answer"))
//	if err != nil {
//		return err
//	}
//	v, err := f.GetTimeout(time.Second)
//
// Периодическая задача:
//
//	f, err := jobs.ScheduleCron(m, func(ctx context.Context) error {
//		return refresh(ctx)
//	}, "@every 30s", jobs.EmptyInput().WithName("refresh"))
//	// ...
//	f.Cancel(false)
//
// Правила отмены:
//   - Cancel(false) только выставляет флаг монитора, блокирующие вызовы не прерываются
//   - Cancel(true) дополнительно отменяет ctx выполнения с причиной прерывания
//   - Отмена имеет приоритет над результатом, полученным после нее
//
// Ошибки работы приводятся к *shared.ProcessingError перехватчиком
// TranslateErrors; паника не транслируется и фиксируется как *shared.PanicError.
package jobs
