package internal

import "time"

// Config is the hub process configuration, loaded from the
// environment.
type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8090"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	MaxClients           int           `env:"MAX_CLIENTS,default=100"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	CommandBufferSize    int           `env:"COMMAND_BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=32"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
}
