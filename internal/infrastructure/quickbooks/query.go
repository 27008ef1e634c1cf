package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

// maxResults límite de la API por consulta.
const maxResults = 1000

// quote escapa un literal para el lenguaje de consultas de QuickBooks.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// buildQuery arma SELECT * FROM entity [WHERE ...] STARTPOSITION n MAXRESULTS m.
func buildQuery(entity string, where []string, opts integration.ListOptions) string {
	if !opts.ModifiedSince.IsZero() {
		where = append(where, "MetaData.LastUpdatedTime >= "+quote(opts.ModifiedSince.Format(time.RFC3339)))
	}
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(entity)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	size := opts.PageSize()
	if size > maxResults {
		size = maxResults
	}
	fmt.Fprintf(&b, " STARTPOSITION %d MAXRESULTS %d", opts.Offset+1, size)
	return b.String()
}

func (c *Client) query(ctx context.Context, entity string, where []string, opts integration.ListOptions) (*queryResponse, error) {
	var out queryResponse
	q := url.Values{"query": {buildQuery(entity, where, opts)}}
	if err := c.call(ctx, strings.ToLower(entity)+".query", http.MethodGet, "query", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
