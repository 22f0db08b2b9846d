package hooks

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mongotus/mongotus/pkg/filestore"
	"github.com/mongotus/mongotus/pkg/handler"
	"github.com/stretchr/testify/assert"
)

// fakeHookHandler is a hand-written stand-in for a generated mock: it records
// every InvokeHook call and returns pre-programmed responses in order.
type fakeHookHandler struct {
	mutex     sync.Mutex
	calls     []HookRequest
	responses []hookResult
}

type hookResult struct {
	res HookResponse
	err error
}

func (f *fakeHookHandler) Setup() error { return nil }

func (f *fakeHookHandler) InvokeHook(req HookRequest) (HookResponse, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, req)
	if len(f.responses) == 0 {
		return HookResponse{}, nil
	}
	next := f.responses[0]
	f.responses = f.responses[1:]
	return next.res, next.err
}

func TestNewHandlerWithHooks(t *testing.T) {
	a := assert.New(t)

	store := filestore.New("some-path")
	config := handler.Config{
		StoreComposer: handler.NewStoreComposer(),
	}
	store.UseIn(config.StoreComposer)

	event := handler.HookEvent{
		Upload: handler.FileInfo{
			ID: "id",
			MetaData: handler.MetaData{
				"hello": "world",
			},
		},
		HTTPRequest: handler.HTTPRequest{
			Method: "POST",
			URI:    "/files/",
			Header: http.Header{
				"X-Hello": []string{"there"},
			},
		},
	}

	response := handler.HTTPResponse{
		StatusCode: 200,
		Body:       "foobar",
		Header: handler.HTTPHeader{
			"X-Hello": "here",
		},
	}

	hookErr := errors.New("oh no")

	fake := &fakeHookHandler{
		responses: []hookResult{
			{res: HookResponse{HTTPResponse: response}},
			{res: HookResponse{HTTPResponse: response, RejectUpload: true}},
			{res: HookResponse{HTTPResponse: response}},
			{res: HookResponse{}, err: hookErr},
		},
	}

	uploadHandler, err := NewHandlerWithHooks(&config, fake, []HookType{
		HookPreCreate, HookPostCreate, HookPostReceive, HookPostTerminate, HookPostFinish, HookPreFinish,
	})
	a.NoError(err)

	// Successful pre-create hook
	a.NoError(config.PreUploadCreateCallback(event))

	// Pre-create hook with rejection
	err = config.PreUploadCreateCallback(event)
	a.Equal(handler.Error{
		ErrorCode: handler.ErrUploadRejectedByServer.ErrorCode,
		Message:   handler.ErrUploadRejectedByServer.Message,
		HTTPResponse: handler.HTTPResponse{
			StatusCode: 200,
			Body:       "foobar",
			Header: handler.HTTPHeader{
				"X-Hello":      "here",
				"Content-Type": "text/plain; charset=utf-8",
				"Connection":   "close",
			},
		},
	}, err)

	// Successful pre-finish hook
	a.NoError(config.PreFinishResponseCallback(event))

	// Pre-finish hook with error
	a.Equal(hookErr, config.PreFinishResponseCallback(event))

	// Successful post-* hooks are fired asynchronously off the notification channels
	uploadHandler.CreatedUploads <- event
	uploadHandler.UploadProgress <- event
	uploadHandler.CompleteUploads <- event
	uploadHandler.TerminatedUploads <- event

	// Wait a short amount for all goroutines to settle
	<-time.After(100 * time.Millisecond)

	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	a.GreaterOrEqual(len(fake.calls), 8)
}
