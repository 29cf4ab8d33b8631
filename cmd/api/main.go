// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/InkLayer/WatermarkStation/internal/kafka"
	"github.com/InkLayer/WatermarkStation/internal/mwlogger"
	"github.com/InkLayer/WatermarkStation/internal/repository"
	"github.com/InkLayer/WatermarkStation/internal/service"
	"github.com/InkLayer/WatermarkStation/internal/storage"
	"github.com/InkLayer/WatermarkStation/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
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
	err := zlog.SetLevel("info")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// interrupt listener doubles as the app-wide context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect to DB and bring the schema up to date
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// connect to object storage
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// repo instance
	repo := repository.NewPostgresTaskRepo(dbConn)

	// wait until kafka is reachable
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker)
	// attach to kafka as producer
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic)
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// service instance
	var svc TaskAPIService = service.NewWatermarkService(repo, pub, strg)
	// HTTP handler instance
	handlers := transport.NewTaskHandler(svc)
	// server setup
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/images", handlers.Create)          // new watermark task
	engine.GET("/images", handlers.GetAllTasks)      // task list with pagination and sorting
	engine.GET("/images/:id", handlers.GetTask)      // task status and provenance
	engine.GET("/images/:id/file", handlers.LoadResult) // download of the watermarked image
	engine.DELETE("/images/:id", handlers.Delete)    // removal of task and its files
	engine.POST("/extract", handlers.Extract)        // synchronous hidden-message readback

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// background sweep re-queueing stuck tasks
	go recoveryLoop(ctx, svc)

	// wait for context cancel to gracefully close DB and kafka connections
	<-ctx.Done()

	shutdown(pub, dbConn)
	log.Println("Exiting app...")
}

func recoveryLoop(ctx context.Context, svc TaskAPIService) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovery loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(context.Background(), 20)
		}
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
