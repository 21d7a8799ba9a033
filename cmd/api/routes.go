package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"librarydesk/internal/asset"
	"librarydesk/internal/audit"
	"librarydesk/internal/auth"
	"librarydesk/internal/book"
	"librarydesk/internal/category"
	"librarydesk/internal/circulation"
	"librarydesk/internal/httpx"
	"librarydesk/internal/member"
	"librarydesk/internal/notification"
	"librarydesk/internal/report"
	"librarydesk/internal/session"
	"librarydesk/internal/settings"
	"librarydesk/internal/user"
)

type handlers struct {
	auth          *auth.HTTPHandler
	users         *user.HTTPHandler
	members       *member.HTTPHandler
	books         *book.HTTPHandler
	bookLookup    *book.Lookup
	categories    *category.HTTPHandler
	circulation   *circulation.HTTPHandler
	notifications *notification.HTTPHandler
	assets        *asset.HTTPHandler
	reports       *report.HTTPHandler
	settings      *settings.HTTPHandler
	logs          *audit.HTTPHandler
	sessions      *session.HTTPHandler
}

type pinger interface {
	Ping(ctx context.Context) error
}

func routes(h handlers, trail *audit.Trail, tokens httpx.TokenParser, revoked httpx.RevocationList, db pinger) *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(fn http.HandlerFunc, mws ...httpx.Middleware) http.Handler {
		return httpx.Chain(fn, append([]httpx.Middleware{httpx.AuthMiddleware(tokens, revoked)}, mws...)...)
	}
	staff := func(fn http.HandlerFunc) http.Handler { return authed(fn, httpx.RequireStaff) }
	admin := func(fn http.HandlerFunc) http.Handler { return authed(fn, httpx.RequireAdmin) }
	audited := trail.Middleware

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/auth/login", h.auth.Login)
	mux.HandleFunc("POST /v1/auth/password/forgot", h.auth.ForgotPassword)
	mux.HandleFunc("POST /v1/auth/password/reset", h.auth.ResetPassword)
	mux.Handle("POST /v1/auth/logout", authed(h.sessions.Logout))
	mux.Handle("GET /v1/auth/me", authed(h.auth.Me))
	mux.Handle("PUT /v1/auth/password", authed(h.auth.ChangePassword))

	mux.Handle("POST /v1/users", admin(audited("user created")(h.users.Create)))
	mux.Handle("GET /v1/users", admin(h.users.List))
	mux.Handle("GET /v1/users/{id}", admin(h.users.Get))
	mux.Handle("PUT /v1/users/{id}/status", admin(audited("user status changed", "id")(h.users.SetStatus)))

	mux.HandleFunc("GET /v1/categories", h.categories.List)
	mux.Handle("POST /v1/categories", admin(h.categories.Create))
	mux.Handle("PUT /v1/categories/{id}", admin(h.categories.Update))
	mux.Handle("DELETE /v1/categories/{id}", admin(h.categories.Delete))

	mux.HandleFunc("GET /v1/books", h.books.List)
	mux.HandleFunc("GET /v1/books/{id}", h.books.Get)
	if h.bookLookup != nil {
		mux.Handle("GET /v1/books/lookup", staff(h.bookLookup.ServeHTTP))
	}
	mux.HandleFunc("GET /v1/books/{id}/availability", h.books.Availability)
	mux.Handle("POST /v1/books", staff(audited("book added")(h.books.Create)))
	mux.Handle("PUT /v1/books/{id}", staff(audited("book updated", "id")(h.books.Update)))
	mux.Handle("DELETE /v1/books/{id}", staff(audited("book deleted", "id")(h.books.Delete)))
	mux.Handle("PUT /v1/books/{id}/featured", staff(h.books.SetFeatured))

	mux.Handle("POST /v1/members", staff(audited("member created")(h.members.Register)))
	mux.Handle("GET /v1/members", staff(h.members.List))
	mux.Handle("GET /v1/members/me", authed(h.members.Me))
	mux.Handle("GET /v1/members/{id}", authed(h.members.Get))
	mux.Handle("PUT /v1/members/{id}", authed(h.members.UpdateProfile))
	mux.Handle("GET /v1/members/{id}/eligibility", authed(h.members.Eligibility))
	mux.Handle("POST /v1/members/{id}/renew", staff(audited("membership renewed", "id")(h.members.Renew)))
	mux.Handle("GET /v1/members/{id}/borrows", authed(h.circulation.MemberHistory))

	mux.Handle("POST /v1/borrows", staff(audited("book borrowed")(h.circulation.Borrow)))
	mux.Handle("GET /v1/borrows/current", staff(h.circulation.Current))
	mux.Handle("GET /v1/borrows/overdue", staff(h.circulation.Overdue))
	mux.Handle("GET /v1/borrows/stats", staff(h.circulation.Stats))
	mux.Handle("POST /v1/borrows/reminders", staff(h.circulation.SendReminders))
	mux.Handle("GET /v1/borrows/{id}", authed(h.circulation.Get))
	mux.Handle("POST /v1/borrows/{id}/return", staff(audited("book returned", "id")(h.circulation.Return)))
	mux.Handle("POST /v1/borrows/{id}/renew", staff(audited("loan renewed", "id")(h.circulation.Renew)))

	mux.Handle("GET /v1/notifications", authed(h.notifications.List))
	mux.Handle("GET /v1/notifications/unread-count", authed(h.notifications.UnreadCount))
	mux.Handle("POST /v1/notifications/read-all", authed(h.notifications.MarkAllRead))
	mux.Handle("POST /v1/notifications/{id}/read", authed(h.notifications.MarkRead))
	mux.Handle("DELETE /v1/notifications/{id}", authed(h.notifications.Delete))

	mux.Handle("GET /v1/assets", authed(h.assets.List))
	mux.Handle("POST /v1/assets", authed(audited("asset uploaded")(h.assets.Upload)))
	mux.Handle("GET /v1/assets/{id}", authed(h.assets.Get))
	mux.Handle("PUT /v1/assets/{id}", authed(h.assets.Update))
	mux.Handle("DELETE /v1/assets/{id}", authed(audited("asset deleted", "id")(h.assets.Delete)))
	mux.Handle("GET /v1/assets/{id}/download", authed(h.assets.Download))
	mux.Handle("GET /v1/admin/assets/stats", admin(h.assets.Stats))
	mux.Handle("GET /v1/admin/assets/{id}/downloads", admin(h.assets.Downloads))

	mux.Handle("GET /v1/reports/dashboard", staff(h.reports.Dashboard))
	mux.Handle("GET /v1/admin/logs", admin(h.logs.List))

	mux.Handle("GET /v1/settings", admin(h.settings.List))
	mux.Handle("POST /v1/settings/reload", admin(h.settings.Reload))
	mux.Handle("GET /v1/settings/{key}", admin(h.settings.Get))
	mux.Handle("PUT /v1/settings/{key}", admin(audited("setting changed", "key")(h.settings.Set)))
	mux.Handle("DELETE /v1/settings/{key}", admin(audited("setting deleted", "key")(h.settings.Delete)))

	return mux
}
