package logging

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger builds the process logger, installs it as the global zerolog
// logger and associates it with the returned context. Development gets a
// human readable console writer, everything else line delimited JSON.
func SetupLogger(ctx context.Context, environment string, level zerolog.Level) (context.Context, *zerolog.Logger) {
	var writer io.Writer = os.Stdout
	if environment == "" || environment == "development" || environment == "local" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return SetupLoggerWithWriter(ctx, writer, level)
}

func SetupLoggerWithWriter(ctx context.Context, writer io.Writer, level zerolog.Level) (context.Context, *zerolog.Logger) {
	l := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = l
	return l.WithContext(ctx), &l
}

// Component returns a child logger tagged with the component name.
func Component(ctx context.Context, name string) zerolog.Logger {
	return zerolog.Ctx(ctx).With().Str("component", name).Logger()
}
