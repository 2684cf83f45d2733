package web_search

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/planweave/tools/web_search/brave"
	"github.com/mohammad-safakhou/planweave/tools/web_search/models"
	"github.com/mohammad-safakhou/planweave/tools/web_search/serper"
)

// WebSearcher answers a query with ranked results (title, snippet, url).
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", provider)
	}
}
