// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"

	"github.com/taibuivan/coursehub/internal/platform/ctxutil"
)

// maxBrowserSessionLength rejects cookies that cannot be one of our ids.
const maxBrowserSessionLength = 128

// BrowserSession copies the browser session cookie into the request context.
//
// # Flow
//  1. No cookie: the request proceeds as anonymous.
//  2. Cookie present: its value is stored with [ctxutil.WithBrowserSession].
//
// The id is opaque here. Whether it maps to a live session is decided by the
// session registry, not by this middleware.
func BrowserSession(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			cookie, err := request.Cookie(cookieName)
			if err != nil || cookie.Value == "" || len(cookie.Value) > maxBrowserSessionLength {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithBrowserSession(request.Context(), cookie.Value)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}
