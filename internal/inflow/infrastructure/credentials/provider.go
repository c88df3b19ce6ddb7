// Package credentials resolves the bearer token used against the inFlow API.
//
// A token comes either from static configuration or from an AWS Secrets
// Manager secret. Secret values are never logged.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/dmehra2102/inflow-order-sync/internal/inflow/domain"
)

const (
	resourceNotFoundException = "ResourceNotFoundException"
	accessDeniedException     = "AccessDeniedException"

	DefaultCacheTTL = 15 * time.Minute
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretEmpty    = errors.New("secret value is empty")
	ErrAccessDenied   = errors.New("access denied to secret")
)

// Static returns a fixed token.
type Static string

func (s Static) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", &domain.ConfigurationError{Reason: "static inFlow API key is empty"}
	}
	return string(s), nil
}

// Missing is used when no credential source is configured. Every call fails
// so that the failure surfaces at the start of each sync.
type Missing struct{}

func (Missing) Token(ctx context.Context) (string, error) {
	return "", &domain.ConfigurationError{Reason: "INFLOW_API_KEY or INFLOW_API_KEY_SECRET must be set"}
}

// ManagerAPI is the subset of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads the token from a Secrets Manager secret and caches it
// for ttl.
type SecretsManager struct {
	log        *slog.Logger
	api        ManagerAPI
	secretName string
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	cached    string
	fetchedAt time.Time
}

func NewSecretsManager(log *slog.Logger, api ManagerAPI, secretName string, ttl time.Duration) *SecretsManager {
	return &SecretsManager{
		log:        log,
		api:        api,
		secretName: secretName,
		ttl:        ttl,
		now:        time.Now,
	}
}

// NewSecretsManagerFromEnv loads the default AWS configuration chain.
func NewSecretsManagerFromEnv(ctx context.Context, log *slog.Logger, region, secretName string) (*SecretsManager, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSecretsManager(log, secretsmanager.NewFromConfig(cfg), secretName, DefaultCacheTTL), nil
}

func (s *SecretsManager) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && s.ttl > 0 && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached, nil
	}

	value, err := s.fetch(ctx)
	if err != nil {
		return "", &domain.ConfigurationError{Reason: "retrieve inFlow API key from secrets manager", Err: err}
	}
	s.cached = value
	s.fetchedAt = s.now()
	return value, nil
}

func (s *SecretsManager) fetch(ctx context.Context) (string, error) {
	s.log.InfoContext(ctx, "retrieving secret", "secret_name", s.secretName)

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &s.secretName})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case resourceNotFoundException:
				return "", ErrSecretNotFound
			case accessDeniedException:
				return "", ErrAccessDenied
			}
			return "", fmt.Errorf("GetSecret operation failed: %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		s.log.ErrorContext(ctx, "failed to retrieve secret", "secret_name", s.secretName, "err", err)
		return "", fmt.Errorf("GetSecret operation failed: %w", err)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrSecretEmpty
	}
	return value, nil
}
