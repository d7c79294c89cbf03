package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeaveRequest(t *testing.T) {
	cases := []struct {
		body string
		want leaveRequest
	}{
		{"", leaveRequest{}},
		{"  abc.def.ghi \n", leaveRequest{Token: "abc.def.ghi"}},
		{`{"product_id":"p1","token":"t"}`, leaveRequest{ProductID: "p1", Token: "t"}},
		{`{"productId":"p1","access_token":"t"}`, leaveRequest{ProductID: "p1", Token: "t"}},
		{"product_id=p1&accessToken=t", leaveRequest{ProductID: "p1", Token: "t"}},
		{"token=t", leaveRequest{Token: "t"}},
		{`{"product_id":"p1"`, leaveRequest{}},
		{`{"token":`, leaveRequest{}},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/", strings.NewReader(tc.body))
		got, err := parseLeaveRequest(req)
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.want, got, tc.body)
	}
}

func TestParseLeaveRequestLimitsBody(t *testing.T) {
	huge := strings.Repeat("a", 2*maxLeaveBody)
	req := httptest.NewRequest("POST", "/", strings.NewReader(huge))

	got, err := parseLeaveRequest(req)
	require.NoError(t, err)
	assert.Len(t, got.Token, maxLeaveBody)
}
