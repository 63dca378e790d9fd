// Package rest is a store backend speaking the PostgREST dialect used by
// hosted Postgres services (/rest/v1/<table>?col=eq.value).
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
)

// Config holds the endpoint and credentials
type Config struct {
	BaseURL string
	APIKey  string
}

// Backend serves tables over HTTP
type Backend struct {
	cfg    Config
	client *clients.HTTPClient
	log    *logger.Logger
}

// New creates a REST backend
func New(cfg Config, client *clients.HTTPClient, log *logger.Logger) *Backend {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Backend{cfg: cfg, client: client, log: log}
}

// Table returns the named table
func (b *Backend) Table(name string) store.Table {
	return &table{backend: b, name: name}
}

// Health lists one workflow row
func (b *Backend) Health(ctx context.Context) error {
	_, err := b.Table(store.TableWorkflow).List(ctx, store.Query{Limit: 1})
	return err
}

// Close is a no-op; the HTTP client is shared
func (b *Backend) Close() error { return nil }

func (b *Backend) headers(write bool) http.Header {
	h := http.Header{}
	h.Set("apikey", b.cfg.APIKey)
	h.Set("Authorization", "Bearer "+b.cfg.APIKey)
	h.Set("Accept", "application/json")
	if write {
		h.Set("Content-Type", "application/json")
		h.Set("Prefer", "return=representation")
	}
	return h
}

type table struct {
	backend *Backend
	name    string
}

func (t *table) Name() string { return t.name }

func (t *table) endpoint(params url.Values) string {
	u := t.backend.cfg.BaseURL + "/rest/v1/" + url.PathEscape(t.name)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (t *table) List(ctx context.Context, q store.Query) ([]store.Row, error) {
	params := url.Values{"select": {"*"}}
	if err := addFilters(params, q.Filters); err != nil {
		return nil, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Col + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	rows, err := t.do(ctx, http.MethodGet, params, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return rows, nil
}

func (t *table) Insert(ctx context.Context, row store.Row) (store.Row, error) {
	body := make(store.Row, len(row))
	for k, v := range row {
		if k != "id" {
			body[k] = v
		}
	}
	rows, err := t.do(ctx, http.MethodPost, nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", t.name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to insert %s: no row returned", t.name)
	}
	return rows[0], nil
}

func (t *table) Update(ctx context.Context, id any, patch store.Row) (store.Row, error) {
	params := url.Values{}
	if err := addFilters(params, []store.Filter{store.Eq("id", id)}); err != nil {
		return nil, err
	}
	body := make(store.Row, len(patch))
	for k, v := range patch {
		if k != "id" {
			body[k] = v
		}
	}
	rows, err := t.do(ctx, http.MethodPatch, params, body)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %v: %w", t.name, id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update %s %v: %w", t.name, id, store.ErrNotFound)
	}
	return rows[0], nil
}

func (t *table) Remove(ctx context.Context, id any) error {
	return t.RemoveWhere(ctx, store.Eq("id", id))
}

func (t *table) RemoveWhere(ctx context.Context, filters ...store.Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("table %s: refusing delete without filters", t.name)
	}
	for _, f := range filters {
		// PostgREST treats in.() as matching nothing, skip the round trip
		if f.Op == store.OpIn && len(f.Values()) == 0 {
			return nil
		}
	}
	params := url.Values{}
	if err := addFilters(params, filters); err != nil {
		return err
	}
	if _, err := t.do(ctx, http.MethodDelete, params, nil); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", t.name, err)
	}
	return nil
}

func (t *table) do(ctx context.Context, method string, params url.Values, body store.Row) ([]store.Row, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	resp, err := t.backend.client.DoRequest(ctx, method, t.endpoint(params), reader, t.backend.headers(body != nil || method == http.MethodDelete))
	if err != nil {
		return nil, err
	}
	data, err := clients.ReadBody(resp)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", err, store.ErrNotFound)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var rows []store.Row
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", t.name, err)
	}
	return rows, nil
}

func addFilters(params url.Values, filters []store.Filter) error {
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				params.Add(f.Col, "is.null")
				continue
			}
			params.Add(f.Col, "eq."+literal(f.Value))
		case store.OpIn:
			values := f.Values()
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = quoted(v)
			}
			params.Add(f.Col, "in.("+strings.Join(parts, ",")+")")
		default:
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	return nil
}

func literal(v any) string {
	s, _ := store.String(v)
	return s
}

// quoted wraps list members that contain reserved characters in double quotes
func quoted(v any) string {
	s := literal(v)
	if strings.ContainsAny(s, `,()" `) {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
