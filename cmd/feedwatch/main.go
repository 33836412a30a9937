// feedwatch is the subscriber half of the feed consistency loop: it consumes
// refresh events from the broadcast topic and re-fetches the canonical feed
// state from the store, the way every open client does on receiving the
// signal.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"feed/pkg/broadcast"
	"feed/pkg/storage/mongo"
)

type Config struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`
}

func main() {
	var (
		configPath string
		logLevel   string
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("[feedwatch] shutting down gracefully...")
		cancel()
	}()

	flag.StringVar(&configPath, "config", "cmd/feedwatch/config.toml", "Path to TOML config file")
	flag.StringVar(&logLevel, "log", "info", "Log level: debug, info, warn, error.")
	flag.Parse()

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[feedwatch] failed to load config file %s: %v", configPath, err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	switch strings.ToLower(cfg.LogLevel) {
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
		log.Fatalf("[feedwatch] failed to load Mongo configuration: %v", err)
	}

	db, err := mongo.New(ctx, mongoConf)
	if err != nil {
		log.Fatalf("[feedwatch] failed to connect to DB: %v", err)
	}
	defer db.Close(context.Background())

	r := broadcast.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer r.Close()

	log.Info("[feedwatch] watching for refresh events...")
	err = r.Listen(ctx, func(ev broadcast.Event) {
		log.Debugf("[feedwatch] refresh event %s from sender %s", ev.ID, ev.SenderID)

		posts, err := db.Posts(ctx, nil)
		if err != nil {
			log.Errorf("[feedwatch] failed to re-fetch posts: %v", err)
			return
		}

		comments := 0
		flagged := 0
		for _, p := range posts {
			comments += len(p.CommentIDs)
			if p.FlagForDeletion {
				flagged++
			}
		}

		log.Infof("[feedwatch] canonical state after %s: %d posts, %d comments, %d flagged",
			shorten(ev.ID), len(posts), comments, flagged)
	})
	if err != nil {
		log.Errorf("[feedwatch] listener stopped: %v", err)
	}
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
