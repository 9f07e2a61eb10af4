package static

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/delivevent/marketplace/backend/internal/domain/entities"
	"github.com/delivevent/marketplace/backend/internal/domain/repositories"
	apperrors "github.com/delivevent/marketplace/backend/pkg/errors"
)

//go:embed data/listings.json
var embeddedListings []byte

const maxDatasetBytes = 10 << 20

// Dataset is the bundled listing list used when the primary source is unavailable.
// Records use camelCase field names and may lack createdAt.
type Dataset struct {
	file       string
	url        string
	httpClient *http.Client
}

// NewDataset creates a dataset read from url, else file, else the embedded copy.
func NewDataset(file, url string, httpClient *http.Client) *Dataset {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dataset{file: file, url: url, httpClient: httpClient}
}

var _ repositories.ListingSource = (*Dataset)(nil)

// Origin names where records are read from
func (d *Dataset) Origin() string {
	switch {
	case d.url != "":
		return d.url
	case d.file != "":
		return d.file
	default:
		return "embedded"
	}
}

// ListListings decodes the dataset. Order is preserved.
func (d *Dataset) ListListings(ctx context.Context, limit int) ([]entities.ListingRecord, error) {
	raw, err := d.read(ctx)
	if err != nil {
		return nil, err
	}

	var records []entities.ListingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to decode dataset %s", d.Origin()), err)
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	log.Debug().Str("origin", d.Origin()).Int("count", len(records)).Msg("Loaded static listings")
	return records, nil
}

func (d *Dataset) read(ctx context.Context) ([]byte, error) {
	switch {
	case d.url != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to build dataset request", err)
		}
		req.Header.Set("Cache-Control", "no-store")
		req.Header.Set("Accept", "application/json")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, apperrors.NewExternalError("failed to fetch dataset", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, apperrors.NewExternalError(fmt.Sprintf("dataset returned status %d", resp.StatusCode), nil)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
		if err != nil {
			return nil, apperrors.NewExternalError("failed to read dataset", err)
		}
		return body, nil
	case d.file != "":
		body, err := os.ReadFile(d.file)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to read dataset file %s", d.file), err)
		}
		return body, nil
	default:
		return embeddedListings, nil
	}
}
