package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/drstein77/storefront/internal/models"
)

// ErrCatalogUnavailable indicates the catalog source could not be fetched or
// parsed at all. A partial catalog with skipped records is not this error.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

type Log interface {
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Loader fetches the product catalog from an external JSON source and
// normalizes it into flat products.
type Loader struct {
	client *http.Client
	url    string
	log    Log
}

func NewLoader(url string, timeout time.Duration, log Log) *Loader {
	return &Loader{
		client: &http.Client{Timeout: timeout},
		url:    url,
		log:    log,
	}
}

// Raw shapes of the catalog document:
// {items: [{sys: {id}, fields: {title, price, image: {fields: {file: {url}}}}}]}
type catalogDocument struct {
	Items []catalogItem `json:"items"`
}

type catalogItem struct {
	Sys struct {
		ID string `json:"id"`
	} `json:"sys"`
	Fields struct {
		Title string   `json:"title"`
		Price *float64 `json:"price"`
		Image struct {
			Fields struct {
				File struct {
					URL string `json:"url"`
				} `json:"file"`
			} `json:"fields"`
		} `json:"image"`
	} `json:"fields"`
}

// Load fetches and normalizes the catalog. Records missing id, title, price
// or image url are skipped and logged; the rest of the catalog still loads.
// A transport, status or decode failure returns ErrCatalogUnavailable.
func (l *Loader) Load(ctx context.Context) ([]models.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.log.Error("Failed to fetch catalog", zap.String("url", l.url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.log.Error("Unexpected catalog response status",
			zap.String("url", l.url), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var doc catalogDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		l.log.Error("Failed to decode catalog", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	products := make([]models.Product, 0, len(doc.Items))
	for i, item := range doc.Items {
		product, err := normalize(item)
		if err != nil {
			l.log.Warn("Skipping malformed catalog record",
				zap.Int("index", i), zap.String("id", item.Sys.ID), zap.Error(err))
			continue
		}
		products = append(products, product)
	}

	return products, nil
}

func normalize(item catalogItem) (models.Product, error) {
	switch {
	case item.Sys.ID == "":
		return models.Product{}, errors.New("missing sys.id")
	case item.Fields.Title == "":
		return models.Product{}, errors.New("missing fields.title")
	case item.Fields.Price == nil:
		return models.Product{}, errors.New("missing fields.price")
	case *item.Fields.Price < 0:
		return models.Product{}, errors.New("negative fields.price")
	case item.Fields.Image.Fields.File.URL == "":
		return models.Product{}, errors.New("missing image file url")
	}

	return models.Product{
		ID:    item.Sys.ID,
		Title: item.Fields.Title,
		Price: *item.Fields.Price,
		Image: item.Fields.Image.Fields.File.URL,
	}, nil
}
