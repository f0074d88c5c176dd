package main

import (
	"go.uber.org/zap"
)

func main() {
	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync()

	if err := newRootCmd(dialControl, logger.Sugar()).Execute(); err != nil {
		logger.Sugar().Fatalf("uectl: %v", err)
	}
}
