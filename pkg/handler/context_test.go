package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHandler(t *testing.T) *UnroutedHandler {
	composer := NewStoreComposer()
	composer.UseCore(zeroStore{})

	h, err := NewUnroutedHandler(Config{
		StoreComposer: composer,
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestContext(t *testing.T) {

	t.Run("new context returns values from parent context", func(t *testing.T) {
		h := newTestHandler(t)

		parentCtx := context.WithValue(context.Background(), "test", "value")
		req := httptest.NewRequest("POST", "/files/", nil)
		reqWithCtx := req.WithContext(parentCtx)
		ctx := h.newContext(&httptest.ResponseRecorder{}, reqWithCtx)

		ctxToTest := context.WithValue(ctx, "another", "testvalue")

		a := assert.New(t)

		a.Equal("testvalue", ctxToTest.Value("another"))
		a.Equal("value", ctxToTest.Value("test"))
	})

	t.Run("parent context cancellation does not cancel the httpContext", func(t *testing.T) {
		h := newTestHandler(t)

		parentCtx, cancelParent := context.WithCancel(context.Background())
		req := httptest.NewRequest("POST", "/files/", nil)
		reqWithCtx := req.WithContext(parentCtx)
		ctx := h.newContext(&httptest.ResponseRecorder{}, reqWithCtx)

		cancelParent()

		a := assert.New(t)

		a.False(errors.Is(ctx.Err(), context.Canceled))
	})

}
