package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/nmalikova/caseline/internal/config"
	"github.com/nmalikova/caseline/internal/logger"
	"github.com/nmalikova/caseline/internal/utils"
	"github.com/nmalikova/caseline/models"
)

type httpGateway struct {
	client *utils.HTTPClient
	probe  ConnectivityProbe
	tokens TokenSource

	logger *logger.Logger
}

// NewHTTPGateway constructs an HTTP/REST implementation of [Gateway].
// It normalises and validates the base URL from gatewayCfg.Address and
// configures the underlying HTTP client with the resolved base URL and
// request timeout. probe decides whether calls are attempted at all; tokens
// supplies the bearer token per request (nil means unauthenticated).
//
// Returns an error if gatewayCfg.Address is empty or cannot be parsed as a
// valid URL.
func NewHTTPGateway(gatewayCfg config.ClientGateway, probe ConnectivityProbe, tokens TokenSource, logger *logger.Logger) (Gateway, error) {
	client := utils.NewHTTPClient()
	baseURL, err := normalizeBaseURL(gatewayCfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway address: %w", err)
	}

	client.
		SetBaseURL(baseURL).
		SetTimeout(gatewayCfg.RequestTimeout)

	if tokens == nil {
		tokens = func() string { return "" }
	}

	return &httpGateway{client: client, probe: probe, tokens: tokens, logger: logger}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Online implements [Gateway]. It returns the connectivity probe's current
// view without touching the network itself.
func (h *httpGateway) Online() bool {
	return h.probe.Online()
}

// Fetch implements [Gateway]. It GETs /{entity}/{key} and decodes the JSON
// body into a [models.Record].
func (h *httpGateway) Fetch(ctx context.Context, entity, key string) (models.Record, error) {
	if !h.Online() {
		return nil, fmt.Errorf("fetch %s/%s: %w", entity, key, ErrOffline)
	}

	resp, err := h.authedRequest(ctx).Get(entityPath(entity, key))
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w: %v", entity, key, ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", entity, key, err)
	}

	var record models.Record
	if err = json.Unmarshal(resp.Body(), &record); err != nil {
		return nil, fmt.Errorf("decode fetch response for %s/%s: %w", entity, key, err)
	}

	return record, nil
}

// FetchPage implements [Gateway]. It GETs /{entity} with optional page/limit
// query parameters and decodes either list response shape the collaborator
// produces.
func (h *httpGateway) FetchPage(ctx context.Context, entity string, page, limit int) (models.ListPage, error) {
	if !h.Online() {
		return models.ListPage{}, fmt.Errorf("list %s: %w", entity, ErrOffline)
	}

	req := h.authedRequest(ctx)
	if page > 0 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get(entityPath(entity, ""))
	if err != nil {
		return models.ListPage{}, fmt.Errorf("list %s: %w: %v", entity, ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.ListPage{}, fmt.Errorf("list %s: %w", entity, err)
	}

	listPage, err := models.DecodeListBody(resp.Body(), entity)
	if err != nil {
		return models.ListPage{}, err
	}

	return listPage, nil
}

// Create implements [Gateway]. It POSTs the payload to /{entity} and returns
// the authoritative record from the response body; the server-assigned
// primary key replaces any local placeholder the caller used.
func (h *httpGateway) Create(ctx context.Context, entity string, payload models.Record) (models.Record, error) {
	if !h.Online() {
		return nil, fmt.Errorf("create %s: %w", entity, ErrOffline)
	}

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(entityPath(entity, ""))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w: %v", entity, ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, fmt.Errorf("create %s: %w", entity, err)
	}

	return decodeRecordOr(resp.Body(), payload, entity)
}

// Update implements [Gateway]. It PUTs the payload to /{entity}/{key}.
// Returns [ErrConflict] (wrapped) on HTTP 409.
func (h *httpGateway) Update(ctx context.Context, entity, key string, payload models.Record) (models.Record, error) {
	return h.update(ctx, entity, key, payload, false)
}

// ForceUpdate implements [Gateway]. Same as Update but with force=true, an
// explicit request to overwrite whatever version the server currently holds.
func (h *httpGateway) ForceUpdate(ctx context.Context, entity, key string, payload models.Record) (models.Record, error) {
	return h.update(ctx, entity, key, payload, true)
}

func (h *httpGateway) update(ctx context.Context, entity, key string, payload models.Record, force bool) (models.Record, error) {
	if !h.Online() {
		return nil, fmt.Errorf("update %s/%s: %w", entity, key, ErrOffline)
	}

	req := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	if force {
		req.SetQueryParam("force", "true")
	}

	resp, err := req.Put(entityPath(entity, key))
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w: %v", entity, key, ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", entity, key, err)
	}

	return decodeRecordOr(resp.Body(), payload, entity)
}

// Remove implements [Gateway]. It issues DELETE /{entity}/{key}.
// Returns [ErrConflict] (wrapped) on HTTP 409.
func (h *httpGateway) Remove(ctx context.Context, entity, key string) error {
	return h.remove(ctx, entity, key, false)
}

// ForceRemove implements [Gateway]. Same as Remove but with force=true.
func (h *httpGateway) ForceRemove(ctx context.Context, entity, key string) error {
	return h.remove(ctx, entity, key, true)
}

func (h *httpGateway) remove(ctx context.Context, entity, key string, force bool) error {
	if !h.Online() {
		return fmt.Errorf("delete %s/%s: %w", entity, key, ErrOffline)
	}

	req := h.authedRequest(ctx)
	if force {
		req.SetQueryParam("force", "true")
	}

	resp, err := req.Delete(entityPath(entity, key))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w: %v", entity, key, ErrTransient, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return fmt.Errorf("delete %s/%s: %w", entity, key, err)
	}

	return nil
}

func (h *httpGateway) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.tokens(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func entityPath(entity, key string) string {
	path := "/" + url.PathEscape(strings.Trim(entity, "/"))
	if key != "" {
		path += "/" + url.PathEscape(key)
	}
	return path
}

// decodeRecordOr decodes the response body into a record, falling back to
// the request payload when the server answers 2xx with an empty body.
func decodeRecordOr(body []byte, fallback models.Record, entity string) (models.Record, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return fallback.Clone(), nil
	}

	var record models.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode %s write response: %w", entity, err)
	}

	return record, nil
}
