package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth *AuthHandler,
	users *UserHandler,
	authMiddleware func(next http.Handler) http.Handler,
	mds ...func(next http.Handler) http.Handler,
) http.Handler {
	withAuth := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	apiusers := http.NewServeMux()

	apiusers.Handle("POST /register", http.HandlerFunc(users.register))
	apiusers.Handle("POST /login", http.HandlerFunc(auth.login))
	apiusers.Handle("POST /refresh-token", http.HandlerFunc(auth.refresh))

	apiusers.Handle("POST /logout", withAuth(auth.logout))
	apiusers.Handle("POST /change-password", withAuth(users.changePassword))
	apiusers.Handle("GET /current-user", withAuth(users.currentUser))
	apiusers.Handle("PATCH /update-account", withAuth(users.updateAccount))
	apiusers.Handle("PATCH /avatar", withAuth(users.updateAvatar))
	apiusers.Handle("PATCH /cover-image", withAuth(users.updateCoverImage))
	apiusers.Handle("GET /c/{username}", withAuth(users.channelProfile))
	apiusers.Handle("POST /c/{username}/subscribe", withAuth(users.toggleSubscription))
	apiusers.Handle("GET /history", withAuth(users.watchHistory))
	apiusers.Handle("POST /history/{videoID}", withAuth(users.recordWatch))

	root := http.NewServeMux()
	root.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", apiusers))

	return chain(root, mds...)
}
