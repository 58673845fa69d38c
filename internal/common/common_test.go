package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("BACKEND_URL", "https://script.example/exec")
	t.Setenv("BACKEND_AUTH_TOKEN", "secret")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("OCR_ENABLE_PDF", "false")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("QUEUE_WORKERS", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, ":9999", cfg.Server.HTTPAddr)
	assert.Equal(t, "https://script.example/exec", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.False(t, cfg.OCR.EnablePDF)
	assert.Equal(t, 2, cfg.Queue.Workers, "unparsable values fall back to the default")
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg := LoadConfig()
		cfg.Backend.URL = ""
		cfg.Database.Driver = ""
		cfg.Storage.Type = "none"
		cfg.OCR.PDFMode = "poppler"
		return cfg
	}

	t.Run("backend url without token", func(t *testing.T) {
		cfg := base()
		cfg.Backend.URL = "https://script.example/exec"
		cfg.Backend.AuthToken = ""
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidInput)
		var appErr *AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "CONFIG_ERROR", appErr.Code)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = ""
		require.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
	})

	t.Run("gcs without bucket", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Type = "gcs"
		cfg.Storage.GCSBucket = ""
		require.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
	})

	t.Run("unknown pdf mode", func(t *testing.T) {
		cfg := base()
		cfg.OCR.PDFMode = "magic"
		require.ErrorIs(t, cfg.Validate(), ErrInvalidInput)
	})
}

func TestValidatorMissingFields(t *testing.T) {
	v := NewValidator().
		Field("company_name", "  ", Required).
		Field("registration_number", "HE123456", Required, MaxLength(4)).
		Field("country", "", Required)

	require.True(t, v.HasErrors())
	assert.Equal(t, []string{"company_name", "country"}, v.MissingFields())
	assert.Contains(t, v.ErrorMessage(), "must be at most 4 characters")

	st, ok := status.FromError(ValidateAndReturnError(v))
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
}

func TestOneOf(t *testing.T) {
	rule := OneOf("Approved", "Rejected")
	assert.Nil(t, rule("status", "Approved"))
	assert.NotNil(t, rule("status", "approved"))
}

func TestGRPCCode(t *testing.T) {
	cases := map[error]codes.Code{
		ErrNotFound:                         codes.NotFound,
		WrapError(ErrBusy, "upload"):        codes.Aborted,
		NewAppError("X", "y", ErrValidation): codes.InvalidArgument,
		ErrUploadLocked:                     codes.FailedPrecondition,
		WrapError(ErrSubmitted, "edit"):     codes.FailedPrecondition,
		errors.New("boom"):                  codes.Internal,
	}
	for err, want := range cases {
		assert.Equal(t, want, GRPCCode(err), err.Error())
	}
	assert.Nil(t, ToGRPC(nil))
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "sess-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "sess-1", SessionIDFromContext(ctx))

	fallback := slog.Default()
	assert.Same(t, fallback, LoggerFromContext(ctx, fallback))
	scoped := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Same(t, scoped, LoggerFromContext(WithLogger(ctx, scoped), fallback))
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "merchant-intake", "json", "debug").Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"service":"merchant-intake"`)
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nope"))
}
