package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"feed/pkg/api"
	"feed/pkg/broadcast"
	"feed/pkg/feed"
	"feed/pkg/storage/mongo"
)

type Config struct {
	ServiceName string `toml:"serviceName"`

	HTTPAddr       string `toml:"httpAddr"`
	LogLevel       string `toml:"logLevel"`
	KafkaAddr      string `toml:"kafkaAddr"`
	LogTopic       string `toml:"logTopic"`
	BroadcastTopic string `toml:"broadcastTopic"`
	KafkaBatch     int    `toml:"kafkaBatch"`
}

func main() {
	var (
		configPath     string
		httpAddr       string
		logLevel       string
		kafkaAddr      string
		logTopic       string
		broadcastTopic string
		kafkaBatch     int
	)

	flag.StringVar(&configPath, "config", "cmd/server/config.toml", "Path to TOML config file")
	flag.StringVar(&httpAddr, "http", ":8088", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "info", "Log level: debug, info, warn, error.")
	flag.StringVar(&kafkaAddr, "kafka", "", "Kafka server address in the form 'host:port'.")
	flag.StringVar(&logTopic, "logtopic", "", "Kafka topic for access log entries.")
	flag.StringVar(&broadcastTopic, "topic", "", "Kafka topic for feed refresh events.")
	flag.IntVar(&kafkaBatch, "batch", 0, "Kafka batch size.")
	flag.Parse()

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[server] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if kafkaAddr != "" {
		cfg.KafkaAddr = kafkaAddr
	}
	if logTopic != "" {
		cfg.LogTopic = logTopic
	}
	if broadcastTopic != "" {
		cfg.BroadcastTopic = broadcastTopic
	}
	if kafkaBatch != 0 {
		cfg.KafkaBatch = kafkaBatch
	}

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8088'")
	}

	switch cfg.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	mongoConf, err := mongo.NewConfig()
	if err != nil {
		log.Fatalf("[server] failed to load Mongo configuration: %v", err)
	}

	ctx := context.Background()
	db, err := mongo.New(ctx, mongoConf)
	if err != nil {
		log.Fatalf("[server] failed to initialize storage instance, DB connection not established: %v", err)
	}

	var pub feed.Publisher
	if cfg.KafkaAddr != "" && cfg.BroadcastTopic != "" {
		if err := broadcast.CreateTopic(cfg.KafkaAddr, cfg.BroadcastTopic); err != nil {
			log.Warnf("[server] failed to create broadcast topic: %v", err)
		}
		bw := broadcast.NewWriter(cfg.KafkaAddr, cfg.BroadcastTopic, cfg.KafkaBatch)
		defer bw.Close()
		pub = bw
	} else {
		log.Warn("[server] kafka was not configured, feed refresh events will not be broadcast")
	}

	var kafkaWriter *kafka.Writer
	if cfg.KafkaAddr != "" && cfg.LogTopic != "" {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.LogTopic,
			BatchSize: cfg.KafkaBatch,
		}
		if err := broadcast.CreateTopic(cfg.KafkaAddr, cfg.LogTopic); err != nil {
			log.Warnf("[server] failed to create log topic: %v", err)
		}
		defer kafkaWriter.Close()
	} else {
		log.Warn("[server] kafka was not configured, logs will not be sent to Kafka")
	}

	feedService := feed.New(db, pub)
	api := api.New(cfg.ServiceName, db, feedService, kafkaWriter)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router,
	}

	go func() {
		log.Infof("[server] starting on port %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
			return
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}

	db.Close(shutdownCtx)
	log.Info("[server] disconnected from DB")
}
