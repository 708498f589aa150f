/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger is the logging sink of every connector. Log lines are rendered
// as protocol LOG messages on stdout, next to the data messages written through
// LogMessage, so that stdout only ever carries protocol messages.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/datazip-inc/airlake/constants"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger zerolog.Logger
	out    = &syncWriter{writer: os.Stdout}
)

type syncWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Write(p)
}

func (s *syncWriter) swap(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Init configures the global logger from viper; LOG_LEVEL selects the level and
// LOG_FOLDER (falling back to CONFIG_FOLDER) enables a rotating JSON log file.
func Init() {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(constants.LogLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{&protocolWriter{out: out}}
	folder := viper.GetString(constants.LogFolder)
	if folder == "" {
		folder = viper.GetString(constants.ConfigFolder)
	}
	if folder != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(folder, "logs", constants.LogFileName),
			MaxSize:    constants.LogFileMaxSizeMB,
			MaxBackups: constants.LogFileMaxBackups,
			MaxAge:     constants.LogFileMaxAgeDays,
			Compress:   true,
		})
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
}

// SetOutput redirects protocol output (logs and messages); used by tests and by
// commands that need to capture output.
func SetOutput(w io.Writer) {
	out.swap(w)
}

func Info(v ...any) {
	logger.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	logger.Info().Msgf(format, v...)
}

func Debug(v ...any) {
	logger.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	logger.Debug().Msgf(format, v...)
}

func Warn(v ...any) {
	logger.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	logger.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	logger.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...any) {
	logger.Fatal().Msgf(format, v...)
}

func init() {
	viper.SetDefault(constants.LogLevel, constants.DefaultLogLevel)
	Init()
}
