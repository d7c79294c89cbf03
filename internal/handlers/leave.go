package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxLeaveBody bounds what is read from a leave request.
const maxLeaveBody = 8 << 10

type leaveRequest struct {
	ProductID string
	Token     string
}

type leaveJSON struct {
	ProductID        string `json:"product_id"`
	ProductIDCamel   string `json:"productId"`
	Token            string `json:"token"`
	AccessToken      string `json:"access_token"`
	AccessTokenCamel string `json:"accessToken"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseLeaveRequest accepts whatever a page-unload beacon manages to send: a JSON
// object, a form body or the bare token. The Content-Type header is not trusted because
// navigator.sendBeacon picks it from the payload type. A truncated JSON object yields an
// empty request so that the header credential and the path still decide.
func parseLeaveRequest(r *http.Request) (leaveRequest, error) {
	if r.Body == nil {
		return leaveRequest{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLeaveBody))
	if err != nil {
		return leaveRequest{}, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return leaveRequest{}, nil
	}

	if body[0] == '{' {
		var v leaveJSON
		if err := json.Unmarshal(body, &v); err != nil {
			return leaveRequest{}, nil
		}
		return leaveRequest{
			ProductID: firstNonEmpty(v.ProductID, v.ProductIDCamel),
			Token:     firstNonEmpty(v.Token, v.AccessToken, v.AccessTokenCamel),
		}, nil
	}

	if bytes.ContainsRune(body, '=') {
		if form, err := url.ParseQuery(string(body)); err == nil {
			req := leaveRequest{
				ProductID: firstNonEmpty(form.Get("product_id"), form.Get("productId")),
				Token:     firstNonEmpty(form.Get("token"), form.Get("access_token"), form.Get("accessToken")),
			}
			if req.ProductID != "" || req.Token != "" {
				return req, nil
			}
		}
	}

	// A JWT never contains '=', so anything else is taken as the raw credential.
	return leaveRequest{Token: string(body)}, nil
}
