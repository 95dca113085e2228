package server

import (
	"context"
	"errors"
	"testing"

	"github.com/rocha19/userserver/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawRequest(s string) wire.Request {
	return wire.Parse([]byte(s))
}

func TestHandlers_CreateThenGetOne(t *testing.T) {
	h := newTestHandlers(newMemoryUserRepo(), false)
	ctx := context.Background()

	resp := h.Create(ctx, rawRequest("POST /user HTTP/1.1\r\n\r\n{\"id\":null,\"name\":\"Ann\",\"email\":\"a@x.com\"}"))
	assert.Equal(t, wire.Response{Status: wire.StatusOK, Body: "User created"}, resp)

	resp = h.GetOne(ctx, rawRequest("GET /user/1 HTTP/1.1\r\n\r\n"))
	assert.Equal(t, wire.StatusOK, resp.Status)
	assert.JSONEq(t, `{"id":1,"name":"Ann","email":"a@x.com"}`, resp.Body)
}

func TestHandlers_CreateMalformedBody(t *testing.T) {
	h := newTestHandlers(newMemoryUserRepo(), false)

	for _, req := range []string{
		"POST /user HTTP/1.1\r\n\r\n{not json",
		"POST /user HTTP/1.1\r\n\r\n",
		"POST /user HTTP/1.1\r\nHost: x\r\n",
		"POST /user HTTP/1.1\r\n\r\n{\"name\":\"Ann\"}",
	} {
		resp := h.Create(context.Background(), rawRequest(req))
		assert.Equal(t, wire.Response{Status: wire.StatusInternalServerError, Body: "Internal error"}, resp, req)
	}
}

func TestHandlers_StoreFailureIsInternalError(t *testing.T) {
	repo := newMemoryUserRepo()
	repo.err = errors.New("connection refused")
	h := newTestHandlers(repo, false)
	ctx := context.Background()
	internal := wire.Response{Status: wire.StatusInternalServerError, Body: "Internal error"}

	assert.Equal(t, internal, h.Create(ctx, rawRequest("POST /user HTTP/1.1\r\n\r\n{\"name\":\"A\",\"email\":\"e\"}")))
	assert.Equal(t, internal, h.GetOne(ctx, rawRequest("GET /user/1 HTTP/1.1\r\n\r\n")))
	assert.Equal(t, internal, h.GetAll(ctx, rawRequest("GET /users HTTP/1.1\r\n\r\n")))
	assert.Equal(t, internal, h.Update(ctx, rawRequest("PUT /user/1 HTTP/1.1\r\n\r\n{\"name\":\"A\",\"email\":\"e\"}")))
	assert.Equal(t, internal, h.Delete(ctx, rawRequest("DELETE /user/1 HTTP/1.1\r\n\r\n")))
}

func TestHandlers_InvalidIDIsInternalError(t *testing.T) {
	h := newTestHandlers(newMemoryUserRepo(), false)
	ctx := context.Background()
	internal := wire.Response{Status: wire.StatusInternalServerError, Body: "Internal error"}

	assert.Equal(t, internal, h.GetOne(ctx, rawRequest("GET /user/abc HTTP/1.1\r\n\r\n")))
	assert.Equal(t, internal, h.GetOne(ctx, rawRequest("GET /user/ HTTP/1.1\r\n\r\n")))
	assert.Equal(t, internal, h.Update(ctx, rawRequest("PUT /user/x HTTP/1.1\r\n\r\n{\"name\":\"A\",\"email\":\"e\"}")))
	assert.Equal(t, internal, h.Delete(ctx, rawRequest("DELETE /user/99999999999 HTTP/1.1\r\n\r\n")))
}

func TestHandlers_GetOneNotFound(t *testing.T) {
	h := newTestHandlers(newMemoryUserRepo(), false)

	resp := h.GetOne(context.Background(), rawRequest("GET /user/42 HTTP/1.1\r\n\r\n"))
	assert.Equal(t, wire.Response{Status: wire.StatusNotFound, Body: "User not found"}, resp)
}

func TestHandlers_GetAll(t *testing.T) {
	h := newTestHandlers(newMemoryUserRepo(), false)
	ctx := context.Background()

	resp := h.GetAll(ctx, wire.Request{})
	assert.Equal(t, wire.Response{Status: wire.StatusOK, Body: "[]"}, resp)

	h.Create(ctx, rawRequest("POST /user HTTP/1.1\r\n\r\n{\"name\":\"Ann\",\"email\":\"a@x.com\"}"))
	h.Create(ctx, rawRequest("POST /user HTTP/1.1\r\n\r\n{\"name\":\"Bob\",\"email\":\"b@x.com\"}"))

	resp = h.GetAll(ctx, wire.Request{})
	assert.Equal(t, wire.StatusOK, resp.Status)
	assert.JSONEq(t, `[{"id":1,"name":"Ann","email":"a@x.com"},{"id":2,"name":"Bob","email":"b@x.com"}]`, resp.Body)
}

func TestHandlers_Update(t *testing.T) {
	repo := newMemoryUserRepo()
	h := newTestHandlers(repo, false)
	ctx := context.Background()

	h.Create(ctx, rawRequest("POST /user HTTP/1.1\r\n\r\n{\"name\":\"Ann\",\"email\":\"a@x.com\"}"))

	resp := h.Update(ctx, rawRequest("PUT /user/1 HTTP/1.1\r\n\r\n{\"id\":5,\"name\":\"Anne\",\"email\":\"anne@x.com\"}"))
	assert.Equal(t, wire.Response{Status: wire.StatusOK, Body: "User updated"}, resp)

	resp = h.GetOne(ctx, rawRequest("GET /user/1 HTTP/1.1\r\n\r\n"))
	assert.JSONEq(t, `{"id":1,"name":"Anne","email":"anne@x.com"}`, resp.Body)

	resp = h.Update(ctx, rawRequest("PUT /user/1 HTTP/1.1\r\n\r\n{\"name\":"))
	assert.Equal(t, wire.StatusInternalServerError, resp.Status)
}

func TestHandlers_UpdateMissingUser(t *testing.T) {
	req := rawRequest("PUT /user/404 HTTP/1.1\r\n\r\n{\"name\":\"Ghost\",\"email\":\"g@x.com\"}")

	t.Run("default answers ok", func(t *testing.T) {
		repo := newMemoryUserRepo()
		h := newTestHandlers(repo, false)

		resp := h.Update(context.Background(), req)
		assert.Equal(t, wire.Response{Status: wire.StatusOK, Body: "User updated"}, resp)
		assert.Empty(t, repo.users)
	})

	t.Run("not found when configured", func(t *testing.T) {
		h := newTestHandlers(newMemoryUserRepo(), true)

		resp := h.Update(context.Background(), req)
		assert.Equal(t, wire.Response{Status: wire.StatusNotFound, Body: "User not found"}, resp)
	})
}

func TestHandlers_DeleteTwice(t *testing.T) {
	h := newTestHandlers(newMemoryUserRepo(), false)
	ctx := context.Background()

	h.Create(ctx, rawRequest("POST /user HTTP/1.1\r\n\r\n{\"name\":\"Ann\",\"email\":\"a@x.com\"}"))

	resp := h.Delete(ctx, rawRequest("DELETE /user/1 HTTP/1.1\r\n\r\n"))
	require.Equal(t, wire.Response{Status: wire.StatusOK, Body: "User deleted"}, resp)

	resp = h.Delete(ctx, rawRequest("DELETE /user/1 HTTP/1.1\r\n\r\n"))
	assert.Equal(t, wire.Response{Status: wire.StatusNotFound, Body: "User not found"}, resp)
}
