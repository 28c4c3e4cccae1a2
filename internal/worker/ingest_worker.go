package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/model"
)

// IngestProcessor runs one queued ingestion and records its outcome.
type IngestProcessor interface {
	ProcessIngest(ctx context.Context, fileID, path string) error
}

// IngestWorker consumes ingestion jobs one at a time. Failed jobs are
// dropped, not requeued; the processor has already marked the file failed.
// A job cut short by shutdown goes back on the queue.
type IngestWorker struct {
	conn      *amqp.Connection
	processor IngestProcessor
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(conn *amqp.Connection, processor IngestProcessor, queueName string, logger *zap.Logger) *IngestWorker {
	return &IngestWorker{
		conn:      conn,
		processor: processor,
		queueName: queueName,
		logger:    logging.OrNop(logger),
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// OCR and embedding are CPU bound; take one job at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	w.logger.Info("ingest worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *IngestWorker) handle(ctx context.Context, d amqp.Delivery) {
	job, err := DecodeIngestJob(d.Body)
	if err != nil {
		w.logger.Error("worker decode ingest job failed", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := w.processor.ProcessIngest(ctx, job.FileID, job.FilePath); err != nil {
		if ctx.Err() != nil {
			w.logger.Warn("worker stopped mid ingest, requeueing", zap.String("file_id", job.FileID))
			_ = d.Nack(false, true)
			return
		}
		w.logger.Error("worker ingest failed", zap.String("file_id", job.FileID), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// DecodeIngestJob parses and validates a queued job body.
func DecodeIngestJob(body []byte) (model.IngestJob, error) {
	var job model.IngestJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("decode ingest job: %w", err)
	}
	if job.FileID == "" || job.FilePath == "" {
		return job, fmt.Errorf("ingest job missing file_id or file_path")
	}
	return job, nil
}
