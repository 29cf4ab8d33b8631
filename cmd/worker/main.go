package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/fontload"
	"github.com/InkLayer/WatermarkStation/internal/kafka"
	"github.com/InkLayer/WatermarkStation/internal/repository"
	"github.com/InkLayer/WatermarkStation/internal/service"
	"github.com/InkLayer/WatermarkStation/internal/storage"
	"github.com/InkLayer/WatermarkStation/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// load config from envs
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// logger goes first
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// connect to DB
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// connect to object storage
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// repo instance
	repo := repository.NewPostgresTaskRepo(dbConn)
	// service instance, worker never publishes so the queue side is a stub
	var svc TaskWorkerService = service.NewWatermarkService(repo, worker.NoopPublisher{}, strg)

	// font face for the text stage, resolved once at boot
	rast, err := fontload.Resolve(appConfig.GetString("FONT_PATH"))
	if err != nil {
		log.Fatalf("Failed to load a font for text watermarks: %v", err)
	}

	// wait until kafka is reachable
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker)
	// attach to kafka as reader
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons.StartConsuming(ctx, queue, retryStrategy)

	// assemble everything the worker needs and launch it
	go worker.NewWorkerInstance(strg, svc, queue, cons, rast, appConfig.GetString("RESULT_KEY")).StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
