package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

type mockManagerAPI struct {
	calls              int
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockManagerAPI) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	return m.getSecretValueFunc(ctx, params)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = Static("  ").Token(context.Background())
	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestMissing(t *testing.T) {
	_, err := Missing{}.Token(context.Background())
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "INFLOW_API_KEY")
}

func TestSecretsManager_TokenCachesWithinTTL(t *testing.T) {
	api := &mockManagerAPI{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			assert.Equal(t, "inflow-api-key", *params.SecretId)
			return &secretsmanager.GetSecretValueOutput{SecretString: strPtr(" tok-1\n")}, nil
		},
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sm := NewSecretsManager(testLogger(), api, "inflow-api-key", time.Minute)
	sm.now = func() time.Time { return now }

	tok, err := sm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = sm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)

	now = now.Add(2 * time.Minute)
	_, err = sm.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestSecretsManager_BinarySecret(t *testing.T) {
	api := &mockManagerAPI{
		getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("bin-token")}, nil
		},
	}
	tok, err := NewSecretsManager(testLogger(), api, "s", time.Minute).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bin-token", tok)
}

func TestSecretsManager_Errors(t *testing.T) {
	tests := []struct {
		name string
		out  *secretsmanager.GetSecretValueOutput
		err  error
		want error
	}{
		{
			name: "not found",
			err:  &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "nope"},
			want: ErrSecretNotFound,
		},
		{
			name: "access denied",
			err:  &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"},
			want: ErrAccessDenied,
		},
		{
			name: "empty",
			out:  &secretsmanager.GetSecretValueOutput{},
			want: ErrSecretEmpty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockManagerAPI{
				getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
					return tt.out, tt.err
				},
			}
			_, err := NewSecretsManager(testLogger(), api, "s", time.Minute).Token(context.Background())

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("transport failure is not cached", func(t *testing.T) {
		api := &mockManagerAPI{
			getSecretValueFunc: func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, errors.New("dial tcp: i/o timeout")
			},
		}
		sm := NewSecretsManager(testLogger(), api, "s", time.Minute)
		_, err := sm.Token(context.Background())
		require.Error(t, err)
		_, err = sm.Token(context.Background())
		require.Error(t, err)
		assert.Equal(t, 2, api.calls)
	})
}
