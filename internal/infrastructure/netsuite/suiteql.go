package netsuite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

// MaxPageSize límite de filas por página de SuiteQL.
const MaxPageSize = 1000

const timestampLayout = "2006-01-02 15:04:05"

// QueryPage página de resultados de SuiteQL. Las filas llegan con columnas en minúsculas.
type QueryPage struct {
	Items        []json.RawMessage `json:"items"`
	Count        int               `json:"count"`
	HasMore      bool              `json:"hasMore"`
	Offset       int               `json:"offset"`
	TotalResults int               `json:"totalResults"`
}

// SuiteQL ejecuta una consulta y devuelve la página indicada por opts.
func (c *Client) SuiteQL(ctx context.Context, q string, opts integration.ListOptions) (*QueryPage, error) {
	limit := opts.PageSize()
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	var page QueryPage
	_, err := c.call(ctx, request{
		op:     "suiteql",
		method: http.MethodPost,
		path:   suiteQLPath,
		query:  url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(opts.Offset)}},
		header: http.Header{"Prefer": {"transient"}},
		body:   map[string]string{"q": q},
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// SuiteQLAll recorre todas las páginas y entrega cada fila a fn; se detiene en el primer error.
func (c *Client) SuiteQLAll(ctx context.Context, q string, fn func(row json.RawMessage) error) error {
	opts := integration.ListOptions{Limit: MaxPageSize}
	for {
		page, err := c.SuiteQL(ctx, q, opts)
		if err != nil {
			return err
		}
		for _, row := range page.Items {
			if err := fn(row); err != nil {
				return err
			}
		}
		if !page.HasMore || len(page.Items) == 0 {
			return nil
		}
		opts.Offset += len(page.Items)
	}
}

// quote escapa un literal SQL.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func modifiedSince(column string, t time.Time) string {
	return column + " >= TO_TIMESTAMP(" + quote(t.Format(timestampLayout)) + ", 'YYYY-MM-DD HH24:MI:SS')"
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeRows[T any](page *QueryPage) ([]T, error) {
	out := make([]T, 0, len(page.Items))
	for _, raw := range page.Items {
		var row T
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
