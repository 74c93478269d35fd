// Command twitanalysis harvests search results into a relational store and
// annotates them with emoticon, retweet, clean text and link data.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"github.com/lisanmuaddib/twitanalysis/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Error loading .env file")
	}

	log := logging.FromEnv(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	root := NewRootCommand(log)
	if err := root.ExecuteContext(ctx); err != nil {
		reportFailure(log, err)
		os.Exit(1)
	}
}

// reportFailure logs err with the fields that help an operator fix it
func reportFailure(log *logrus.Logger, err error) {
	var (
		missing  *twitter.MissingCredentialError
		invalid  *twitter.ValidationError
		storeErr *storeError
	)
	switch {
	case errors.As(err, &missing):
		log.WithField("missing", missing.Missing).Error("Twitter credentials are not configured")
	case errors.As(err, &invalid):
		log.WithFields(logrus.Fields{
			"field": invalid.Field,
			"value": invalid.Value,
		}).Error(invalid.Message)
	case errors.As(err, &storeErr):
		log.WithError(storeErr.err).WithField("engine", storeErr.engine).Error("Failed to open tweet store")
	case errors.Is(err, context.Canceled):
		log.Warn("Run cancelled")
	default:
		log.WithError(err).Error("Run failed")
	}
}
