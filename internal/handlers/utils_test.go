package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeatTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	assert.Empty(t, seatTokenFromRequest(r))

	r.Header.Set("Cookie", "theme=dark; seat_token=abc.def; other=1")
	assert.Equal(t, "abc.def", seatTokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, "xyz", seatTokenFromRequest(r), "header wins over cookie")
}
