package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/serroba/shortlink/internal/middleware"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// LinkService is the part of shortener.Service the HTTP layer needs.
type LinkService interface {
	CreateLink(ctx context.Context, principal, originalURL, customShortID string) (*shortener.Link, error)
	Resolve(ctx context.Context, shortID, visitorIP string) (string, error)
	Stats(ctx context.Context, shortID string) (*shortener.Link, error)
	ListLinks(ctx context.Context, principal string, limit int) ([]*shortener.Link, error)
}

// PrincipalSource reports who is calling.
type PrincipalSource interface {
	CurrentPrincipal(ctx context.Context) string
}

// LinkHandler handles link creation, redirects and statistics.
type LinkHandler struct {
	links      LinkService
	principals PrincipalSource
	baseURL    string
	logger     *zap.Logger
}

// NewLinkHandler creates a new link handler. baseURL prefixes returned short URLs.
func NewLinkHandler(links LinkService, principals PrincipalSource, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links:      links,
		principals: principals,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

func (h *LinkHandler) CreateLink(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error) {
	principal := h.principals.CurrentPrincipal(ctx)

	link, err := h.links.CreateLink(ctx, principal, req.Body.OriginalURL, req.Body.CustomShortID)
	if err != nil {
		return nil, linkError(err, h.logger)
	}

	shortURL := h.shortURL(link.ShortID)

	resp := &CreateLinkResponse{Status: http.StatusCreated, Location: shortURL}
	resp.Body.ShortenedURL = shortURL
	resp.Body.ShortID = link.ShortID
	resp.Body.OriginalURL = link.OriginalURL

	return resp, nil
}

func (h *LinkHandler) Redirect(ctx context.Context, req *ShortIDRequest) (*RedirectResponse, error) {
	meta := middleware.RequestMetaFromContext(ctx)

	target, err := h.links.Resolve(ctx, req.ShortID, meta.ClientIP)
	if err != nil {
		return nil, linkError(err, h.logger)
	}

	return &RedirectResponse{
		Status:       http.StatusFound,
		Location:     target,
		CacheControl: "no-store",
	}, nil
}

func (h *LinkHandler) Stats(ctx context.Context, req *ShortIDRequest) (*StatsResponse, error) {
	link, err := h.links.Stats(ctx, req.ShortID)
	if err != nil {
		return nil, linkError(err, h.logger)
	}

	ips := link.VisitorIPs
	if ips == nil {
		ips = []string{}
	}

	return &StatsResponse{Body: LinkStats{
		ShortID:            link.ShortID,
		OriginalURL:        link.OriginalURL,
		CreatedAt:          link.CreatedAt,
		ClickCount:         link.ClickCount,
		UniqueVisitorCount: link.UniqueVisitors(),
		VisitorIPs:         ips,
	}}, nil
}

func (h *LinkHandler) ListLinks(ctx context.Context, req *ListLinksRequest) (*ListLinksResponse, error) {
	links, err := h.links.ListLinks(ctx, h.principals.CurrentPrincipal(ctx), req.Limit)
	if err != nil {
		return nil, linkError(err, h.logger)
	}

	resp := &ListLinksResponse{}
	resp.Body.Links = make([]LinkSummary, 0, len(links))

	for _, link := range links {
		resp.Body.Links = append(resp.Body.Links, LinkSummary{
			ShortID:      link.ShortID,
			ShortenedURL: h.shortURL(link.ShortID),
			OriginalURL:  link.OriginalURL,
			CreatedAt:    link.CreatedAt,
			ClickCount:   link.ClickCount,
		})
	}

	return resp, nil
}

func (h *LinkHandler) shortURL(shortID string) string {
	return h.baseURL + "/" + shortID
}
