package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inflow-order-sync/internal/config"
	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
	"github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/credentials"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "sync"}, names)
}

func TestTokenProvider(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	p, err := tokenProvider(ctx, log, config.Inflow{APIKey: "k", APIKeySecret: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, credentials.Static("k"), p)

	p, err = tokenProvider(ctx, log, config.Inflow{})
	require.NoError(t, err)
	_, err = p.Token(ctx)
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
