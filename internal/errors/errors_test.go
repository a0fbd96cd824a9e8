package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/trivia/internal/errors"
)

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		err      error
		wantCode errors.Code
		wantHTTP int
		wantKind string
	}{
		"plain error becomes internal": {
			err:      stderrors.New("connection reset"),
			wantCode: errors.CodeInternal,
			wantHTTP: http.StatusInternalServerError,
			wantKind: "server_error",
		},
		"wrapped conflict keeps its code": {
			err:      fmt.Errorf("submit: %w", errors.Conflict("session %s is finished", "s1")),
			wantCode: errors.CodeConflict,
			wantHTTP: http.StatusConflict,
			wantKind: "conflict",
		},
		"not found": {
			err:      errors.NotFound("session not found: %s", "s1"),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
			wantKind: "not_found",
		},
		"invalid argument": {
			err:      errors.InvalidArgument("player_name is required"),
			wantCode: errors.CodeInvalidArgument,
			wantHTTP: http.StatusBadRequest,
			wantKind: "invalid_input",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHTTP, e.HTTPStatusCode())
			assert.Equal(t, tt.wantKind, e.Kind())
			assert.True(t, errors.Is(e, tt.wantCode))
		})
	}
}

func TestError_GRPCStatus(t *testing.T) {
	cause := stderrors.New("boom")
	e := errors.New(errors.CodeConflict, errors.WithMessagef("answer already submitted"), errors.WithCause(cause))

	st, ok := status.FromError(e)
	assert.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
	assert.Equal(t, "answer already submitted", st.Message())
	assert.ErrorIs(t, e, cause)
}

func TestError_Error(t *testing.T) {
	tests := map[string]struct {
		err  *errors.Error
		want string
	}{
		"message only": {
			err:  errors.NotFound("session not found: %s", "s1"),
			want: "not_found: session not found: s1",
		},
		"with cause": {
			err:  errors.Internal(stderrors.New("boom")),
			want: "server_error: Internal: boom",
		},
		"unknown code maps to server error": {
			err:  errors.New(errors.Code(codes.Unavailable)),
			want: "server_error: Unavailable",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
