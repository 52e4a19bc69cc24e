package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWords(t *testing.T) {
	req := require.New(t)

	req.Nil(Config{}.Words())
	req.Nil(Config{CensoredWords: "  "}.Words())
	req.Equal(
		[]string{"badger", "snake"},
		Config{CensoredWords: " badger, snake ,"}.Words(),
	)
}

func TestReplacementRune(t *testing.T) {
	req := require.New(t)

	r, err := Config{CharReplacement: "*"}.ReplacementRune()
	req.NoError(err)
	req.Equal('*', r)

	_, err = Config{CharReplacement: "**"}.ReplacementRune()
	req.Error(err)

	_, err = Config{CharReplacement: ""}.ReplacementRune()
	req.Error(err)
}

func TestLevel(t *testing.T) {
	req := require.New(t)

	req.Equal(slog.LevelDebug, Config{LogLevel: "debug"}.Level())
	req.Equal(slog.LevelInfo, Config{LogLevel: "unknown"}.Level())
	req.Equal(slog.LevelError, Config{LogLevel: "ERROR"}.Level())
}
