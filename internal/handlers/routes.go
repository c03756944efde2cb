package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// ReservedShortIDs are the first path segments of static routes, which the
// router matches before /{short_id}. Aliases with these names could never redirect.
var ReservedShortIDs = []string{
	"shorten", "links", "stats", "signup", "signin", "logout",
	"health",
	"docs", "openapi", "schemas",
}

// RegisterRoutes registers the link and account routes.
// Middleware must be added to api before calling it.
func RegisterRoutes(api huma.API, links *LinkHandler, accounts *AccountHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "create-link",
		Method:      http.MethodPost,
		Path:        "/shorten",
		Summary:     "Create short URL",
		Description: "Shortens a URL for the signed-in principal, optionally under a custom alias.",
		Tags:        []string{"Links"},
		Errors: []int{
			http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusConflict, http.StatusServiceUnavailable,
		},
	}, links.CreateLink)

	huma.Register(api, huma.Operation{
		OperationID: "list-links",
		Method:      http.MethodGet,
		Path:        "/links",
		Summary:     "List my links",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusUnauthorized},
	}, links.ListLinks)

	huma.Register(api, huma.Operation{
		OperationID: "link-stats",
		Method:      http.MethodGet,
		Path:        "/stats/{short_id}",
		Summary:     "Link statistics",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusNotFound},
	}, links.Stats)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{short_id}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL and counts the visit.",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusNotFound, http.StatusTooManyRequests},
	}, links.Redirect)

	huma.Register(api, huma.Operation{
		OperationID: "signup",
		Method:      http.MethodPost,
		Path:        "/signup",
		Summary:     "Create an account",
		Tags:        []string{"Accounts"},
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, accounts.Signup)

	huma.Register(api, huma.Operation{
		OperationID: "signin",
		Method:      http.MethodPost,
		Path:        "/signin",
		Summary:     "Sign in",
		Tags:        []string{"Accounts"},
		Errors:      []int{http.StatusUnauthorized},
	}, accounts.Signin)

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/logout",
		Summary:       "Sign out",
		Tags:          []string{"Accounts"},
		DefaultStatus: http.StatusNoContent,
	}, accounts.Logout)
}
