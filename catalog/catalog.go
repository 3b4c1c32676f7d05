// Package catalog queries the IDC BigQuery index for category populations,
// eligible series candidates, slide pyramid layers, and paired segmentation
// series. It is a pure I/O adapter: the sampling engine consumes it through
// the sample.Catalog interface.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"

	"github.com/medimageio/idcmosaic/sample"
)

// DefaultDataset is the public IDC index, always pointing at the current
// data release.
const DefaultDataset = "bigquery-public-data.idc_current"

// Client wraps a BigQuery connection with the catalog filters from the
// sampling config.
type Client struct {
	Context context.Context
	BQ      *bigquery.Client
	Dataset string

	Modalities           []string
	SlideModality        string
	MinInstanceCount     int
	ExcludedDescriptions []string
	PixelSpacingMin      float64
	PixelSpacingMax      float64
}

// Connect opens a BigQuery client billed to project, querying the given
// dataset (DefaultDataset when empty).
func Connect(ctx context.Context, project, dataset string, cfg sample.Config) (*Client, error) {
	bq, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("connecting to BigQuery: %v", err)
	}

	if dataset == "" {
		dataset = DefaultDataset
	}

	minInstances := cfg.MinInstanceCount
	if minInstances < 1 {
		minInstances = 1
	}

	return &Client{
		Context:              ctx,
		BQ:                   bq,
		Dataset:              dataset,
		Modalities:           cfg.Modalities,
		SlideModality:        cfg.SlideModality,
		MinInstanceCount:     minInstances,
		ExcludedDescriptions: cfg.ExcludedDescriptions,
		PixelSpacingMin:      cfg.PixelSpacingMin,
		PixelSpacingMax:      cfg.PixelSpacingMax,
	}, nil
}

// Close releases the underlying BigQuery client.
func (c *Client) Close() error {
	return c.BQ.Close()
}

// Populations returns the eligible-series count per modality.
func (c *Client) Populations(ctx context.Context) ([]sample.CategoryPopulation, error) {
	query := c.BQ.Query(fmt.Sprintf(`SELECT modality AS category, COUNT(*) AS population
FROM (
  SELECT SeriesInstanceUID, ANY_VALUE(Modality) AS modality, COUNT(*) AS instance_count
  FROM %s
  WHERE Modality IN (%s)
  GROUP BY SeriesInstanceUID
)
WHERE instance_count >= %d
GROUP BY category`, c.table(), c.modalityList(), c.MinInstanceCount))

	itr, err := query.Read(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var out []sample.CategoryPopulation
	for {
		var row struct {
			Category   string `bigquery:"category"`
			Population int64  `bigquery:"population"`
		}

		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}

		out = append(out, sample.CategoryPopulation{
			Category:   row.Category,
			Population: row.Population,
		})
	}

	return out, nil
}

// IDCVersion reports the data release the index currently points at.
func (c *Client) IDCVersion(ctx context.Context) (string, error) {
	query := c.BQ.Query(fmt.Sprintf(`SELECT CONCAT('v', CAST(MAX(idc_version) AS STRING)) AS idc_version
FROM `+"`%s.version_metadata`", c.Dataset))

	itr, err := query.Read(ctx)
	if err != nil {
		return "", pfx.Err(err)
	}

	var row struct {
		IDCVersion string `bigquery:"idc_version"`
	}
	if err := itr.Next(&row); err != nil {
		return "", pfx.Err(err)
	}

	return row.IDCVersion, nil
}

func (c *Client) table() string {
	return fmt.Sprintf("`%s.dicom_all`", c.Dataset)
}

func (c *Client) modalityList() string {
	quoted := make([]string, 0, len(c.Modalities))
	for _, m := range c.Modalities {
		quoted = append(quoted, "'"+sqlEscape(m)+"'")
	}

	return strings.Join(quoted, ", ")
}

// sqlEscape strips quoting characters from interpolated values. The values
// here are modality tags, UIDs, and description fragments, none of which
// legitimately contain quotes.
func sqlEscape(s string) string {
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "\\", "")

	return s
}
