package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// initLogger sends every log line to a rotating file; the terminal belongs
// to the graph and the console.
func initLogger(file string) {
	fileEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    2, // megabytes
		MaxBackups: 10,
		MaxAge:     10, // days
		Compress:   true,
	})
	logger := zap.New(zapcore.NewCore(fileEncoder, fileWriter, zap.InfoLevel), zap.AddCaller())
	zap.ReplaceGlobals(logger)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	zap.S().Infow("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		zap.S().Errorw("metrics server stopped", "error", err)
	}
}
