package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/objsync/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStaticTokenValidate(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			testlog.Start(t)
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})
	assert.NoError(t, validator.Validate("ok"))
	assert.ErrorIs(t, validator.Validate("nope"), ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", Middleware(StaticToken{Token: "s3cret"}), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	cases := map[string]struct {
		header string
		value  string
		want   int
	}{
		"missing":      {want: http.StatusUnauthorized},
		"wrong bearer": {header: "Authorization", value: "Bearer nope", want: http.StatusUnauthorized},
		"bearer":       {header: "Authorization", value: "Bearer s3cret", want: http.StatusNoContent},
		"custom":       {header: HeaderToken, value: "s3cret", want: http.StatusNoContent},
		"basic scheme": {header: "Authorization", value: "Basic s3cret", want: http.StatusUnauthorized},
	}
	for name, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, name)
	}
}
